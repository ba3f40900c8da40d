package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/scoring"
)

type participantRepo struct{ s *Store }

func (r participantRepo) Create(_ context.Context, _ *sql.Tx, p *model.ContestParticipant) error {
	return r.s.write(func(d *data) error {
		for _, existing := range d.participants {
			if existing.ContestID == p.ContestID && existing.PlayerID == p.PlayerID {
				return fmt.Errorf("player already joined this contest: %w", common.ErrConflict)
			}
		}
		d.participants[p.ID] = *p
		return nil
	})
}

func findParticipant(d *data, contestID, playerID string) (model.ContestParticipant, bool) {
	for _, p := range d.participants {
		if p.ContestID == contestID && p.PlayerID == playerID {
			return p, true
		}
	}
	return model.ContestParticipant{}, false
}

func (r participantRepo) Find(_ context.Context, _ *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error) {
	var (
		p  model.ContestParticipant
		ok bool
	)
	r.s.read(func(d *data) { p, ok = findParticipant(d, contestID, playerID) })
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (r participantRepo) FindForUpdate(ctx context.Context, tx *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error) {
	return r.Find(ctx, tx, contestID, playerID)
}

func (r participantRepo) UpdateScores(_ context.Context, _ *sql.Tx, in *model.ContestParticipant) error {
	return r.s.write(func(d *data) error {
		p, ok := d.participants[in.ID]
		if !ok {
			return common.ErrNotFound
		}
		scoring.StandingOf(in).ApplyTo(&p)
		d.participants[in.ID] = p
		return nil
	})
}

func contestParticipants(d *data, contestID string) []model.ContestParticipant {
	var out []model.ContestParticipant
	for _, p := range d.participants {
		if p.ContestID == contestID {
			out = append(out, p)
		}
	}
	scoring.SortStandings(out)
	return out
}

func (r participantRepo) ListByContest(_ context.Context, _ *sql.Tx, contestID string) ([]model.ContestParticipant, error) {
	var out []model.ContestParticipant
	r.s.read(func(d *data) { out = contestParticipants(d, contestID) })
	if out == nil {
		out = []model.ContestParticipant{}
	}
	return out, nil
}

func (r participantRepo) SetFinalRank(_ context.Context, _ *sql.Tx, id string, rank int) error {
	return r.s.write(func(d *data) error {
		p, ok := d.participants[id]
		if !ok {
			return nil
		}
		p.FinalRank = &rank
		d.participants[id] = p
		return nil
	})
}

func (r participantRepo) Standings(_ context.Context, contestID string, mode model.Mode, limit, offset int) ([]model.ContestLeaderboardEntry, int, error) {
	var entries []model.ContestLeaderboardEntry
	r.s.read(func(d *data) {
		for _, p := range contestParticipants(d, contestID) {
			if mode != "" && p.Mode != mode {
				continue
			}
			e := model.ContestLeaderboardEntry{
				ParticipantID:  p.ID,
				PlayerID:       p.PlayerID,
				Mode:           p.Mode,
				RawScore:       p.RawScore,
				AccuracyScore:  p.AccuracyScore,
				XPScore:        p.XPScore,
				FinalRating:    p.FinalRating,
				ProblemsSolved: p.ProblemsSolved,
				PenaltyMins:    p.PenaltyMins,
				LastSolvedAt:   p.LastSolvedAt,
				FinalRank:      p.FinalRank,
			}
			if pl, ok := d.players[p.PlayerID]; ok {
				e.Tier, e.SubRank = pl.Tier, pl.SubRank
				if u, ok := d.users[pl.UserID]; ok {
					e.Name = u.Name
				}
			}
			entries = append(entries, e)
		}
	})
	return page(entries, limit, offset), len(entries), nil
}

func (r participantRepo) RecentByPlayer(_ context.Context, playerID string, limit int) ([]model.ParticipantSummary, error) {
	var out []model.ParticipantSummary
	r.s.read(func(d *data) {
		for _, p := range d.participants {
			if p.PlayerID != playerID {
				continue
			}
			s := model.ParticipantSummary{ContestParticipant: p}
			if c, ok := d.contests[p.ContestID]; ok {
				s.ContestTitle, s.ContestStatus = c.Title, c.Status
			}
			out = append(out, s)
		}
	})
	slices.SortFunc(out, func(a, b model.ParticipantSummary) int {
		return b.JoinedAt.Compare(a.JoinedAt)
	})
	return page(out, limit, 0), nil
}
