// Package scoring holds the pure parts of the contest engine: the tunable rule set,
// the level table, per-solve score arithmetic, leaderboard ordering and the contest
// lifecycle rules. Nothing here touches storage.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"os"
	"tle_arena/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// Weights is the (accuracy, raw, xp) triple used to blend a participant's scores.
type Weights struct {
	Accuracy float64 `yaml:"accuracy" json:"accuracy"`
	Raw      float64 `yaml:"raw" json:"raw"`
	XP       float64 `yaml:"xp" json:"xp"`
}

type ModeProfile struct {
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Weights    Weights `yaml:"weights" json:"weights"`
}

// Rules is the engine configuration. It is loaded once at start and passed by value.
type Rules struct {
	Points          map[model.Difficulty]int   `yaml:"points"`
	SolveXP         map[model.Difficulty]int   `yaml:"solve_xp"`
	JoinXP          int                        `yaml:"join_xp"`
	RankBonus       []int                      `yaml:"rank_bonus"`
	PenaltyPerWrong int                        `yaml:"penalty_per_wrong_mins"`
	PenaltyWeight   int                        `yaml:"penalty_weight"`
	Modes           map[model.Mode]ModeProfile `yaml:"modes"`
	Levels          LevelTable                 `yaml:"levels"`
}

// DefaultRules returns a fresh copy of the stock tuning.
func DefaultRules() Rules {
	return Rules{
		Points: map[model.Difficulty]int{
			model.DifficultyEasy:   100,
			model.DifficultyMedium: 200,
			model.DifficultyHard:   400,
		},
		SolveXP: map[model.Difficulty]int{
			model.DifficultyEasy:   75,
			model.DifficultyMedium: 150,
			model.DifficultyHard:   300,
		},
		JoinXP:          50,
		RankBonus:       []int{500, 400, 300, 200, 100},
		PenaltyPerWrong: 10,
		PenaltyWeight:   2,
		Modes: map[model.Mode]ModeProfile{
			model.ModePrecision: {Multiplier: 1.0, Weights: Weights{Accuracy: 0.60, Raw: 0.25, XP: 0.15}},
			model.ModeGrinder:   {Multiplier: 1.1, Weights: Weights{Accuracy: 0.20, Raw: 0.60, XP: 0.20}},
			model.ModeLegend:    {Multiplier: 1.5, Weights: Weights{Accuracy: 0.20, Raw: 0.20, XP: 0.60}},
		},
		Levels: DefaultLevelTable(),
	}
}

// LoadRules overlays the YAML file at path on the defaults. An empty path yields the defaults.
// A mode listed in the file replaces the whole default profile for that mode.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read scoring rules %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse scoring rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("scoring rules %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) Validate() error {
	var errs []error
	for _, d := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		if v, ok := r.Points[d]; !ok || v < 0 {
			errs = append(errs, fmt.Errorf("points for %s missing or negative", d))
		}
		if v, ok := r.SolveXP[d]; !ok || v < 0 {
			errs = append(errs, fmt.Errorf("solve xp for %s missing or negative", d))
		}
	}
	for _, m := range []model.Mode{model.ModePrecision, model.ModeGrinder, model.ModeLegend} {
		p, ok := r.Modes[m]
		if !ok {
			errs = append(errs, fmt.Errorf("mode %s missing", m))
			continue
		}
		if p.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("mode %s multiplier must be positive", m))
		}
		sum := p.Weights.Accuracy + p.Weights.Raw + p.Weights.XP
		if math.Abs(sum-1) > 1e-9 {
			errs = append(errs, fmt.Errorf("mode %s weights sum to %v, want 1", m, sum))
		}
	}
	if r.JoinXP < 0 {
		errs = append(errs, errors.New("join xp is negative"))
	}
	for i, b := range r.RankBonus {
		if b < 0 {
			errs = append(errs, fmt.Errorf("rank bonus %d is negative", i+1))
		}
	}
	if r.PenaltyPerWrong < 0 || r.PenaltyWeight < 0 {
		errs = append(errs, errors.New("penalty settings must not be negative"))
	}
	if err := r.Levels.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Profile returns the multiplier and weights for mode. Modes are validated at the
// edges, so an unknown one here is a programming error.
func (r Rules) Profile(mode model.Mode) ModeProfile {
	p, ok := r.Modes[mode]
	if !ok {
		panic(fmt.Sprintf("scoring: unknown mode %q", mode))
	}
	return p
}

// PointsFor returns the problem's own point value, falling back to the difficulty default.
func (r Rules) PointsFor(p *model.Problem) int {
	if p.Points > 0 {
		return p.Points
	}
	return r.Points[p.Difficulty]
}

// RankBonusFor returns the bonus for a 1-based final rank and whether one applies.
func (r Rules) RankBonusFor(rank int) (int, bool) {
	if rank < 1 || rank > len(r.RankBonus) {
		return 0, false
	}
	return r.RankBonus[rank-1], true
}
