package model

import (
	"strings"
	"time"
)

type ContestStatus string

const (
	ContestDraft     ContestStatus = "DRAFT"
	ContestUpcoming  ContestStatus = "UPCOMING"
	ContestLive      ContestStatus = "LIVE"
	ContestEnded     ContestStatus = "ENDED"
	ContestCancelled ContestStatus = "CANCELLED"
)

// ParseContestStatus normalizes s and reports whether it is one of the five statuses.
func ParseContestStatus(s string) (ContestStatus, bool) {
	st := ContestStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case ContestDraft, ContestUpcoming, ContestLive, ContestEnded, ContestCancelled:
		return st, true
	}
	return "", false
}

const DefaultContestDurationMins = 90

type Contest struct {
	ID                string        `json:"id"`
	Slug              string        `json:"slug"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	ProblemIDs        []string      `json:"problem_ids"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	DurationMins      int           `json:"duration_mins"`
	IsPublic          bool          `json:"is_public"`
	InviteCode        *string       `json:"invite_code,omitempty"`
	CreatedBy         string        `json:"created_by"`
	Status            ContestStatus `json:"status"`
	ParticipantCount  int           `json:"participant_count"`
	LeaderboardFrozen bool          `json:"leaderboard_frozen"`
	WinnerIDs         []string      `json:"winner_ids,omitempty"`
	FinalizedAt       *time.Time    `json:"finalized_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// HasProblem reports whether problemID is part of the contest problem set.
func (c *Contest) HasProblem(problemID string) bool {
	for _, id := range c.ProblemIDs {
		if id == problemID {
			return true
		}
	}
	return false
}
