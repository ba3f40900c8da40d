package model

import "time"

type ContestLeaderboardEntry struct {
	Rank           int        `json:"rank"`
	ParticipantID  string     `json:"participant_id"`
	PlayerID       string     `json:"player_id"`
	Name           string     `json:"name"`
	Tier           Tier       `json:"tier"`
	SubRank        string     `json:"sub_rank"`
	Mode           Mode       `json:"mode"`
	RawScore       int        `json:"raw_score"`
	AccuracyScore  int        `json:"accuracy_score"`
	XPScore        float64    `json:"xp_score"`
	FinalRating    float64    `json:"final_rating"`
	ProblemsSolved int        `json:"problems_solved"`
	PenaltyMins    int        `json:"penalty_mins"`
	LastSolvedAt   *time.Time `json:"last_solved_at,omitempty"`
	FinalRank      *int       `json:"final_rank,omitempty"`
}

type GlobalLeaderboardEntry struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	Name          string `json:"name"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	Tier          Tier   `json:"tier"`
	SubRank       string `json:"sub_rank"`
	TotalContests int    `json:"total_contests"`
	TotalWins     int    `json:"total_wins"`
}
