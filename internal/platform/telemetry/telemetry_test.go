package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLoggerTo_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", true)
	logger.Info("hidden")
	logger.Warn("shown", "player_id", "p1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"player_id":"p1"`)
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)
	ctx := context.Background()

	m.RecordOperationAttempt(ctx, "CreditSolve", "AwardService")
	m.RecordOperationAttempt(ctx, "CreditSolve", "AwardService")
	m.RecordOperationFailure(ctx, "CreditSolve", "AwardService")
	m.RecordOperationDuration(ctx, "CreditSolve", "AwardService", 20*time.Millisecond)
	m.RecordXPGranted(ctx, "SOLVE_HARD", 330)
	m.RecordXPGranted(ctx, "SOLVE_HARD", 300)
	m.RecordAwardSkipped(ctx, "already_credited")
	m.RecordEventPublished(ctx, "PROBLEM_SOLVED", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("AwardService", "CreditSolve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("AwardService", "CreditSolve")))
	assert.Equal(t, 630.0, testutil.ToFloat64(m.xpGranted.WithLabelValues("SOLVE_HARD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skips.WithLabelValues("already_credited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("PROBLEM_SOLVED", "error")))
}
