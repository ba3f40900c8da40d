package model

import "time"

type XPSource string

const (
	SourceContestJoin XPSource = "CONTEST_JOIN"
	SourceSolveEasy   XPSource = "SOLVE_EASY"
	SourceSolveMedium XPSource = "SOLVE_MEDIUM"
	SourceSolveHard   XPSource = "SOLVE_HARD"
	SourceRankBonus   XPSource = "RANK_BONUS"
)

// SolveSource maps a problem difficulty to its ledger source.
func SolveSource(d Difficulty) XPSource {
	switch d {
	case DifficultyMedium:
		return SourceSolveMedium
	case DifficultyHard:
		return SourceSolveHard
	default:
		return SourceSolveEasy
	}
}

type XPLedgerEntry struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"player_id"`
	ContestID    *string   `json:"contest_id,omitempty"`
	Source       XPSource  `json:"source"`
	BaseXP       int       `json:"base_xp"`
	Multiplier   float64   `json:"multiplier"`
	FinalXP      int       `json:"final_xp"`
	EarnedAt     time.Time `json:"earned_at"`
	ContestTitle *string   `json:"contest_title,omitempty"` // For display
}
