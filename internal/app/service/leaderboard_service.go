package service

import (
	"context"
	"tle_arena/internal/app/report"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"
)

// exportLimit bounds a standings export to one query.
const exportLimit = 10000

type LeaderboardService struct {
	contests     repository.ContestRepository
	participants repository.ParticipantRepository
	players      repository.PlayerRepository
	tel          Telemetry
}

func NewLeaderboardService(
	contests repository.ContestRepository,
	participants repository.ParticipantRepository,
	players repository.PlayerRepository,
	tel Telemetry,
) *LeaderboardService {
	return &LeaderboardService{
		contests:     contests,
		participants: participants,
		players:      players,
		tel:          tel.withDefaults(),
	}
}

type ContestBoard struct {
	ContestID         string                          `json:"contest_id"`
	Status            model.ContestStatus             `json:"status"`
	LeaderboardFrozen bool                            `json:"leaderboard_frozen"`
	Mode              model.Mode                      `json:"mode,omitempty"`
	Entries           []model.ContestLeaderboardEntry `json:"entries"`
	Total             int                             `json:"total"`
	Page              int                             `json:"page"`
	Limit             int                             `json:"limit"`
}

// ContestBoard pages a contest's standings. Ranks are board positions, so the
// first row of page 2 with limit 20 is rank 21. With a mode filter ranks count
// only that mode's participants. Draft boards are hidden from non-staff.
func (s *LeaderboardService) ContestBoard(ctx context.Context, contestID, mode, role string, page, limit int) (*ContestBoard, error) {
	var m model.Mode
	if mode != "" {
		parsed, ok := model.ParseMode(mode)
		if !ok {
			return nil, common.Errorf("unknown mode %q: %w", mode, common.ErrValidation)
		}
		m = parsed
	}
	return withTelemetry(s.tel, ctx, "LeaderboardService", "ContestBoard", contestID, func(ctx context.Context) (*ContestBoard, error) {
		c, err := s.contests.FindByID(ctx, nil, contestID)
		if err != nil {
			return nil, err
		}
		if c.Status == model.ContestDraft && !isStaff(role) {
			return nil, common.ErrNotFound
		}
		offset := scoring.Offset(page, limit)
		entries, total, err := s.participants.Standings(ctx, contestID, m, limit, offset)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			entries[i].Rank = scoring.Rank(offset, i)
		}
		return &ContestBoard{
			ContestID:         c.ID,
			Status:            c.Status,
			LeaderboardFrozen: c.LeaderboardFrozen,
			Mode:              m,
			Entries:           entries,
			Total:             total,
			Page:              page,
			Limit:             limit,
		}, nil
	})
}

// GlobalBoard pages active players by lifetime XP, optionally within one tier.
func (s *LeaderboardService) GlobalBoard(ctx context.Context, tier string, page, limit int) (*common.Page[model.GlobalLeaderboardEntry], error) {
	var t model.Tier
	if tier != "" {
		parsed, ok := model.ParseTier(tier)
		if !ok {
			return nil, common.Errorf("unknown tier %q: %w", tier, common.ErrValidation)
		}
		t = parsed
	}
	return withTelemetry(s.tel, ctx, "LeaderboardService", "GlobalBoard", string(t), func(ctx context.Context) (*common.Page[model.GlobalLeaderboardEntry], error) {
		offset := scoring.Offset(page, limit)
		players, total, err := s.players.ListGlobal(ctx, t, limit, offset)
		if err != nil {
			return nil, err
		}
		entries := make([]model.GlobalLeaderboardEntry, len(players))
		for i, p := range players {
			name := ""
			if p.Name != nil {
				name = *p.Name
			}
			entries[i] = model.GlobalLeaderboardEntry{
				Rank:          scoring.Rank(offset, i),
				PlayerID:      p.ID,
				Name:          name,
				XP:            p.XP,
				Level:         p.Level,
				Tier:          p.Tier,
				SubRank:       p.SubRank,
				TotalContests: p.TotalContests,
				TotalWins:     p.TotalWins,
			}
		}
		return &common.Page[model.GlobalLeaderboardEntry]{Items: entries, Total: total, Page: page, Limit: limit}, nil
	})
}

// ExportStandings renders the full contest board as an XLSX workbook.
func (s *LeaderboardService) ExportStandings(ctx context.Context, contestID string) ([]byte, string, error) {
	c, err := s.contests.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, "", err
	}
	entries, _, err := s.participants.Standings(ctx, contestID, "", exportLimit, 0)
	if err != nil {
		return nil, "", err
	}
	for i := range entries {
		entries[i].Rank = scoring.Rank(0, i)
	}
	data, err := report.StandingsXLSX(c, entries)
	if err != nil {
		return nil, "", common.Errorf("render standings: %w", err)
	}
	return data, report.StandingsFilename(c), nil
}
