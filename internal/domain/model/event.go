package model

import "time"

type EventType string

const (
	EventPlayerLevelUp        EventType = "PLAYER_LEVEL_UP"
	EventPlayerRankChanged    EventType = "PLAYER_RANK_CHANGED"
	EventProblemSolved        EventType = "PROBLEM_SOLVED"
	EventContestStatusChanged EventType = "CONTEST_STATUS_CHANGED"
	EventPlayerTierUpgraded   EventType = "PLAYER_TIER_UPGRADED"
	EventPlayerJoinedContest  EventType = "PLAYER_JOINED_CONTEST"
	EventContestFinished      EventType = "CONTEST_FINISHED"
	EventLeaderboardUpdated   EventType = "LEADERBOARD_UPDATED"
)

// Event is what the engine hands to the notification sink. Payload is one of the
// *Payload structs below.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type LevelUpPayload struct {
	PlayerID string `json:"playerId"`
	OldLevel int    `json:"oldLevel"`
	NewLevel int    `json:"newLevel"`
	Tier     Tier   `json:"tier"`
	SubRank  string `json:"subRank"`
}

type RankChangedPayload struct {
	PlayerID  string `json:"playerId"`
	ContestID string `json:"contestId"`
	OldRank   int    `json:"oldRank"`
	NewRank   int    `json:"newRank"`
}

type ProblemSolvedPayload struct {
	PlayerID  string  `json:"playerId"`
	ProblemID string  `json:"problemId"`
	ContestID *string `json:"contestId,omitempty"`
	Points    int     `json:"points"`
}

type ContestStatusChangedPayload struct {
	ContestID string        `json:"contestId"`
	OldStatus ContestStatus `json:"oldStatus"`
	NewStatus ContestStatus `json:"newStatus"`
}

type TierUpgradedPayload struct {
	PlayerID string `json:"playerId"`
	OldTier  Tier   `json:"oldTier"`
	NewTier  Tier   `json:"newTier"`
}

type PlayerJoinedPayload struct {
	PlayerID  string `json:"playerId"`
	ContestID string `json:"contestId"`
}

type ContestFinishedPayload struct {
	ContestID string   `json:"contestId"`
	WinnerIDs []string `json:"winnerIds"`
}

type LeaderboardUpdatedPayload struct {
	ContestID string `json:"contestId"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC(), Payload: payload}
}
