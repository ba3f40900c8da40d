package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/platform/telemetry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishRecord struct {
	eventType string
	ok        bool
}

type fakeMetrics struct {
	telemetry.NoOpMetrics
	mu        sync.Mutex
	published []publishRecord
}

func (m *fakeMetrics) RecordEventPublished(_ context.Context, eventType string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishRecord{eventType, ok})
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("bus down") }
func (failingPublisher) Close() error                              { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_PublishesToEventSubject(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, "arena.events.PLAYER_LEVEL_UP")
	require.NoError(t, err)

	metrics := &fakeMetrics{}
	p := NewPublisher(pubsub, discardLogger(), metrics)
	p.Notify(ctx, model.NewEvent(model.EventPlayerLevelUp, model.LevelUpPayload{
		PlayerID: "p1", OldLevel: 1, NewLevel: 2, Tier: model.TierBronze, SubRank: "Bronze II",
	}))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "PLAYER_LEVEL_UP", msg.Metadata.Get(metadataEventType))
		var got struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "PLAYER_LEVEL_UP", got.Type)
		assert.Equal(t, "p1", got.Payload["playerId"])
		assert.EqualValues(t, 2, got.Payload["newLevel"])
	case <-ctx.Done():
		t.Fatal("event was not published")
	}
	assert.Equal(t, []publishRecord{{"PLAYER_LEVEL_UP", true}}, metrics.published)
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	metrics := &fakeMetrics{}
	p := NewPublisher(failingPublisher{}, discardLogger(), metrics)

	assert.NotPanics(t, func() {
		p.Notify(context.Background(),
			model.NewEvent(model.EventProblemSolved, model.ProblemSolvedPayload{PlayerID: "p1", ProblemID: "x", Points: 100}),
			model.NewEvent(model.EventLeaderboardUpdated, model.LeaderboardUpdatedPayload{ContestID: "c1"}),
		)
	})
	assert.Equal(t, []publishRecord{
		{"PROBLEM_SOLVED", false},
		{"LEADERBOARD_UPDATED", false},
	}, metrics.published)
}
