package scoring

import (
	"fmt"
	"time"
	"tle_arena/internal/domain/model"

	"github.com/shopspring/decimal"
)

// Standing is the score state of one contest participant.
type Standing struct {
	RawScore       int
	AccuracyScore  int
	XPScore        float64
	FinalRating    float64
	ProblemsSolved int
	PenaltyMins    int
	XPEarned       int
	LastSolvedAt   *time.Time
}

func StandingOf(p *model.ContestParticipant) Standing {
	return Standing{
		RawScore:       p.RawScore,
		AccuracyScore:  p.AccuracyScore,
		XPScore:        p.XPScore,
		FinalRating:    p.FinalRating,
		ProblemsSolved: p.ProblemsSolved,
		PenaltyMins:    p.PenaltyMins,
		XPEarned:       p.XPEarned,
		LastSolvedAt:   p.LastSolvedAt,
	}
}

// ApplyTo copies the standing onto p.
func (s Standing) ApplyTo(p *model.ContestParticipant) {
	p.RawScore = s.RawScore
	p.AccuracyScore = s.AccuracyScore
	p.XPScore = s.XPScore
	p.FinalRating = s.FinalRating
	p.ProblemsSolved = s.ProblemsSolved
	p.PenaltyMins = s.PenaltyMins
	p.XPEarned = s.XPEarned
	p.LastSolvedAt = s.LastSolvedAt
}

// Solve is one first acceptance of a contest problem.
type Solve struct {
	Difficulty    model.Difficulty
	Points        int
	WrongAttempts int
	SolvedAt      time.Time
}

type SolveResult struct {
	Standing   Standing
	Source     model.XPSource
	BaseXP     int
	Multiplier float64
	FinalXP    int
}

// ApplySolve folds one credited solve into a participant's standing.
//
// accuracy uses the accumulated penalty, and xpScore is the mean of the XP earned
// before this solve and the XP this solve grants (not a running average).
func (r Rules) ApplySolve(mode model.Mode, before Standing, solve Solve) SolveResult {
	profile := r.Profile(mode)
	if solve.WrongAttempts < 0 {
		panic(fmt.Sprintf("scoring: negative wrong attempts %d", solve.WrongAttempts))
	}

	baseXP := r.SolveXP[solve.Difficulty]
	finalXP := FinalXP(baseXP, profile.Multiplier)

	after := before
	after.RawScore = before.RawScore + solve.Points
	after.PenaltyMins = before.PenaltyMins + solve.WrongAttempts*r.PenaltyPerWrong
	after.AccuracyScore = after.RawScore - after.PenaltyMins*r.PenaltyWeight
	after.XPScore = float64(before.XPEarned+finalXP) / 2
	after.FinalRating = r.Rating(mode, after.AccuracyScore, after.RawScore, after.XPScore)
	after.ProblemsSolved = before.ProblemsSolved + 1
	after.XPEarned = before.XPEarned + finalXP
	solvedAt := solve.SolvedAt
	after.LastSolvedAt = &solvedAt

	return SolveResult{
		Standing:   after,
		Source:     model.SolveSource(solve.Difficulty),
		BaseXP:     baseXP,
		Multiplier: profile.Multiplier,
		FinalXP:    finalXP,
	}
}

// Rating blends the three scores with the mode's weights. The sum is taken in decimal
// so ratings compare exactly on the board.
func (r Rules) Rating(mode model.Mode, accuracy, raw int, xpScore float64) float64 {
	w := r.Profile(mode).Weights
	sum := decimal.NewFromFloat(w.Accuracy).Mul(decimal.NewFromInt(int64(accuracy))).
		Add(decimal.NewFromFloat(w.Raw).Mul(decimal.NewFromInt(int64(raw)))).
		Add(decimal.NewFromFloat(w.XP).Mul(decimal.NewFromFloat(xpScore)))
	f, _ := sum.Float64()
	return f
}

// FinalXP returns base × multiplier rounded half up. Negative inputs are caller bugs.
func FinalXP(base int, multiplier float64) int {
	if base < 0 || multiplier < 0 {
		panic(fmt.Sprintf("scoring: negative xp grant (base %d, multiplier %v)", base, multiplier))
	}
	v := decimal.NewFromInt(int64(base)).Mul(decimal.NewFromFloat(multiplier)).Round(0)
	return int(v.IntPart())
}
