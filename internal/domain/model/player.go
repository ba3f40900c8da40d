package model

import (
	"strings"
	"time"
)

// Mode is the scoring profile a player picks when joining a contest.
type Mode string

const (
	ModePrecision Mode = "PRECISION"
	ModeGrinder   Mode = "GRINDER"
	ModeLegend    Mode = "LEGEND"

	DefaultMode = ModeGrinder
)

// ParseMode normalizes s and reports whether it names a known mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModePrecision, ModeGrinder, ModeLegend:
		return m, true
	}
	return "", false
}

type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
	TierDiamond  Tier = "DIAMOND"
	TierMaster   Tier = "MASTER"
)

// ParseTier normalizes s and reports whether it names a known tier.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum, TierDiamond, TierMaster:
		return t, true
	}
	return "", false
}

const (
	PlayerStatusActive   = "ACTIVE"
	PlayerStatusInactive = "INACTIVE"
)

// ParsePlayerStatus normalizes s and reports whether it names a player status.
func ParsePlayerStatus(s string) (string, bool) {
	st := strings.ToUpper(strings.TrimSpace(s))
	switch st {
	case PlayerStatusActive, PlayerStatusInactive:
		return st, true
	}
	return "", false
}

type Player struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	XP            int        `json:"xp"`
	Level         int        `json:"level"`
	Tier          Tier       `json:"tier"`
	SubRank       string     `json:"sub_rank"`
	PreferredMode Mode       `json:"preferred_mode"`
	TotalContests int        `json:"total_contests"`
	TotalWins     int        `json:"total_wins"`
	StreakDays    int        `json:"streak_days"`
	LastActiveOn  *time.Time `json:"last_active_on,omitempty"`
	LastContestAt *time.Time `json:"last_contest_at,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Name          *string    `json:"name,omitempty"` // For display
}
