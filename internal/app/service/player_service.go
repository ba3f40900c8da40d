package service

import (
	"context"
	"tle_arena/internal/app/report"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"
)

const (
	recentContestsLimit = 10
	chartHistoryLimit   = 1000
)

type PlayerService struct {
	players      repository.PlayerRepository
	participants repository.ParticipantRepository
	submissions  repository.SubmissionRepository
	ledger       repository.XPLedgerRepository
	rules        scoring.Rules
	tel          Telemetry
}

func NewPlayerService(
	players repository.PlayerRepository,
	participants repository.ParticipantRepository,
	submissions repository.SubmissionRepository,
	ledger repository.XPLedgerRepository,
	rules scoring.Rules,
	tel Telemetry,
) *PlayerService {
	return &PlayerService{
		players:      players,
		participants: participants,
		submissions:  submissions,
		ledger:       ledger,
		rules:        rules,
		tel:          tel.withDefaults(),
	}
}

type PlayerProfile struct {
	Player         *model.Player              `json:"player"`
	Progress       scoring.Progress           `json:"progress"`
	Stats          model.SubmissionStats      `json:"stats"`
	RecentContests []model.ParticipantSummary `json:"recent_contests"`
}

func (s *PlayerService) Profile(ctx context.Context, playerID string) (*PlayerProfile, error) {
	return withTelemetry(s.tel, ctx, "PlayerService", "Profile", playerID, func(ctx context.Context) (*PlayerProfile, error) {
		p, err := s.players.FindByID(ctx, nil, playerID)
		if err != nil {
			return nil, err
		}
		stats, err := s.submissions.Stats(ctx, playerID)
		if err != nil {
			return nil, err
		}
		recent, err := s.participants.RecentByPlayer(ctx, playerID, recentContestsLimit)
		if err != nil {
			return nil, err
		}
		return &PlayerProfile{
			Player:         p,
			Progress:       s.rules.Levels.Progress(p.XP),
			Stats:          stats,
			RecentContests: recent,
		}, nil
	})
}

// XPChart renders the player's cumulative XP as a PNG.
func (s *PlayerService) XPChart(ctx context.Context, playerID string) ([]byte, error) {
	if _, err := s.players.FindByID(ctx, nil, playerID); err != nil {
		return nil, err
	}
	entries, _, err := s.ledger.ListByPlayer(ctx, playerID, chartHistoryLimit, 0)
	if err != nil {
		return nil, err
	}
	return report.XPHistoryChart(entries)
}

func (s *PlayerService) UpdatePreferredMode(ctx context.Context, playerID, mode string) (*model.Player, error) {
	m, ok := model.ParseMode(mode)
	if !ok {
		return nil, common.Errorf("unknown mode %q: %w", mode, common.ErrValidation)
	}
	if err := s.players.UpdatePreferredMode(ctx, nil, playerID, m); err != nil {
		return nil, err
	}
	return s.players.FindByID(ctx, nil, playerID)
}

// SetStatus deactivates or reactivates a player. Inactive players keep their
// history but leave the global board and cannot join contests.
func (s *PlayerService) SetStatus(ctx context.Context, playerID, status string) (*model.Player, error) {
	st, ok := model.ParsePlayerStatus(status)
	if !ok {
		return nil, common.Errorf("unknown player status %q: %w", status, common.ErrValidation)
	}
	return withTelemetry(s.tel, ctx, "PlayerService", "SetStatus", playerID, func(ctx context.Context) (*model.Player, error) {
		if err := s.players.UpdateStatus(ctx, nil, playerID, st); err != nil {
			return nil, err
		}
		s.tel.Logger.InfoContext(ctx, "Player status changed", "player_id", playerID, "status", st)
		return s.players.FindByID(ctx, nil, playerID)
	})
}

// Levels exposes the level table in use.
func (s *PlayerService) Levels() scoring.LevelTable {
	return s.rules.Levels
}
