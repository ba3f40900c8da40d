package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/scoring"
)

type playerRepo struct{ s *Store }

func (r playerRepo) Create(_ context.Context, _ *sql.Tx, p *model.Player) error {
	return r.s.write(func(d *data) error {
		for _, existing := range d.players {
			if existing.UserID == p.UserID {
				return fmt.Errorf("player for user %s already exists: %w", p.UserID, common.ErrConflict)
			}
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		d.players[p.ID] = *p
		return nil
	})
}

// withName fills the display name from the owning user, as the SQL join does.
func withName(d *data, p model.Player) *model.Player {
	if u, ok := d.users[p.UserID]; ok {
		name := u.Name
		p.Name = &name
	}
	return &p
}

func (r playerRepo) FindByID(_ context.Context, _ *sql.Tx, id string) (*model.Player, error) {
	var out *model.Player
	r.s.read(func(d *data) {
		if p, ok := d.players[id]; ok {
			out = withName(d, p)
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r playerRepo) FindByUserID(_ context.Context, userID string) (*model.Player, error) {
	var out *model.Player
	r.s.read(func(d *data) {
		for _, p := range d.players {
			if p.UserID == userID {
				out = withName(d, p)
				return
			}
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r playerRepo) LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Player, error) {
	return r.FindByID(ctx, tx, id)
}

func (r playerRepo) update(id string, fn func(p *model.Player)) error {
	return r.s.write(func(d *data) error {
		p, ok := d.players[id]
		if !ok {
			return common.ErrNotFound
		}
		fn(&p)
		p.UpdatedAt = r.s.now()
		d.players[id] = p
		return nil
	})
}

func (r playerRepo) AddXP(_ context.Context, _ *sql.Tx, id string, delta int) (int, error) {
	var xp int
	err := r.update(id, func(p *model.Player) {
		p.XP += delta
		xp = p.XP
	})
	return xp, err
}

func (r playerRepo) UpdateLevel(_ context.Context, _ *sql.Tx, id string, level int, tier model.Tier, subRank string) error {
	return r.update(id, func(p *model.Player) {
		p.Level, p.Tier, p.SubRank = level, tier, subRank
	})
}

func (r playerRepo) RecordContestJoin(_ context.Context, _ *sql.Tx, id string, at time.Time) error {
	return r.update(id, func(p *model.Player) {
		p.TotalContests++
		p.LastContestAt = &at
	})
}

func (r playerRepo) RecordWin(_ context.Context, _ *sql.Tx, id string) error {
	return r.update(id, func(p *model.Player) { p.TotalWins++ })
}

func (r playerRepo) UpdateStreak(_ context.Context, _ *sql.Tx, id string, streakDays int, activeOn time.Time) error {
	return r.update(id, func(p *model.Player) {
		p.StreakDays = streakDays
		p.LastActiveOn = &activeOn
	})
}

func (r playerRepo) UpdatePreferredMode(_ context.Context, _ *sql.Tx, id string, mode model.Mode) error {
	return r.update(id, func(p *model.Player) { p.PreferredMode = mode })
}

func (r playerRepo) UpdateStatus(_ context.Context, _ *sql.Tx, id, status string) error {
	return r.update(id, func(p *model.Player) { p.Status = status })
}

func (r playerRepo) ListGlobal(_ context.Context, tier model.Tier, limit, offset int) ([]model.Player, int, error) {
	var players []model.Player
	r.s.read(func(d *data) {
		for _, p := range d.players {
			if p.Status != model.PlayerStatusActive || (tier != "" && p.Tier != tier) {
				continue
			}
			players = append(players, *withName(d, p))
		}
	})
	scoring.SortGlobal(players)
	return page(players, limit, offset), len(players), nil
}

func (r playerRepo) ListIDs(_ context.Context) ([]string, error) {
	var ids []string
	r.s.read(func(d *data) {
		for id := range d.players {
			ids = append(ids, id)
		}
	})
	slices.Sort(ids)
	return ids, nil
}
