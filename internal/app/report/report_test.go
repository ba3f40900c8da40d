package report

import (
	"bytes"
	"testing"
	"time"
	"tle_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestStandingsXLSX(t *testing.T) {
	solved := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	first := 1
	contest := &model.Contest{Title: "Spring Cup", Slug: "spring-cup", Status: model.ContestEnded}
	rows := []model.ContestLeaderboardEntry{
		{Rank: 1, Name: "ada", Tier: model.TierGold, Mode: model.ModeLegend, FinalRating: 353, RawScore: 400, ProblemsSolved: 1, LastSolvedAt: &solved, FinalRank: &first},
		{Rank: 2, Name: "bob", Tier: model.TierBronze, Mode: model.ModeGrinder},
	}

	data, err := StandingsXLSX(contest, rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(standingsSheet)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Spring Cup (ENDED)", got[0][0])
	assert.Equal(t, "Rank", got[1][0])
	assert.Equal(t, []string{"1", "ada", "GOLD", "LEGEND", "353"}, got[2][:5])
	assert.Equal(t, "2026-03-01T10:30:00Z", got[2][10])
	assert.Equal(t, "bob", got[3][1])
	assert.Equal(t, "spring-cup-standings.xlsx", StandingsFilename(contest))
}

func TestXPHistoryChart(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		entries []model.XPLedgerEntry
	}{
		{name: "empty"},
		{name: "single entry", entries: []model.XPLedgerEntry{{FinalXP: 50, EarnedAt: t0}}},
		{name: "unsorted", entries: []model.XPLedgerEntry{
			{FinalXP: 330, EarnedAt: t0.Add(2 * time.Hour)},
			{FinalXP: 50, EarnedAt: t0},
			{FinalXP: 500, EarnedAt: t0.Add(48 * time.Hour)},
		}},
		{name: "zero xp", entries: []model.XPLedgerEntry{{FinalXP: 0, EarnedAt: t0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := XPHistoryChart(tt.entries)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, pngMagic))
		})
	}
}
