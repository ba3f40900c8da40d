package model

import "time"

type ContestParticipant struct {
	ID             string     `json:"id"`
	ContestID      string     `json:"contest_id"`
	PlayerID       string     `json:"player_id"`
	Mode           Mode       `json:"mode"`
	RawScore       int        `json:"raw_score"`
	AccuracyScore  int        `json:"accuracy_score"`
	XPScore        float64    `json:"xp_score"`
	FinalRating    float64    `json:"final_rating"`
	ProblemsSolved int        `json:"problems_solved"`
	PenaltyMins    int        `json:"penalty_mins"`
	XPEarned       int        `json:"xp_earned"`
	LastSolvedAt   *time.Time `json:"last_solved_at,omitempty"`
	FinalRank      *int       `json:"final_rank,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// ParticipantSummary is a participant row joined with its contest, used by player stats.
type ParticipantSummary struct {
	ContestParticipant
	ContestTitle  string        `json:"contest_title"`
	ContestStatus ContestStatus `json:"contest_status"`
}
