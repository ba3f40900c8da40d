package scoring

import (
	"os"
	"path/filepath"
	"testing"
	"tle_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_Valid(t *testing.T) {
	r := DefaultRules()
	require.NoError(t, r.Validate())

	bonus, ok := r.RankBonusFor(1)
	assert.True(t, ok)
	assert.Equal(t, 500, bonus)
	bonus, ok = r.RankBonusFor(5)
	assert.True(t, ok)
	assert.Equal(t, 100, bonus)
	_, ok = r.RankBonusFor(6)
	assert.False(t, ok)
}

func TestDefaultRules_FreshCopies(t *testing.T) {
	a := DefaultRules()
	a.Points[model.DifficultyEasy] = 1
	b := DefaultRules()
	assert.Equal(t, 100, b.Points[model.DifficultyEasy])
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	r, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}

func TestLoadRules_OverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
join_xp: 80
rank_bonus: [1000, 500]
points:
  HARD: 500
modes:
  LEGEND:
    multiplier: 2.0
    weights: {accuracy: 0.1, raw: 0.1, xp: 0.8}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 80, r.JoinXP)
	assert.Equal(t, []int{1000, 500}, r.RankBonus)
	assert.Equal(t, 500, r.Points[model.DifficultyHard])
	assert.Equal(t, 100, r.Points[model.DifficultyEasy])
	assert.Equal(t, 2.0, r.Profile(model.ModeLegend).Multiplier)
	assert.Equal(t, 1.1, r.Profile(model.ModeGrinder).Multiplier)
}

func TestLoadRules_RejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
modes:
  PRECISION:
    multiplier: 1.0
    weights: {accuracy: 0.5, raw: 0.5, xp: 0.5}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadRules(path)
	assert.ErrorContains(t, err, "PRECISION weights")
}

func TestRules_PointsFor(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, 250, r.PointsFor(&model.Problem{Difficulty: model.DifficultyMedium, Points: 250}))
	assert.Equal(t, 200, r.PointsFor(&model.Problem{Difficulty: model.DifficultyMedium}))
}
