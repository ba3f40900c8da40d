package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
)

type contestRepo struct{ s *Store }

func storedContest(c *model.Contest) model.Contest {
	out := *c
	out.ProblemIDs = append([]string{}, c.ProblemIDs...)
	out.WinnerIDs = append([]string{}, c.WinnerIDs...)
	return out
}

func (r contestRepo) Create(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	return r.s.write(func(d *data) error {
		for _, existing := range d.contests {
			if existing.Slug == c.Slug {
				return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
			}
		}
		now := r.s.now()
		c.CreatedAt, c.UpdatedAt = now, now
		d.contests[c.ID] = storedContest(c)
		return nil
	})
}

func (r contestRepo) FindByID(_ context.Context, _ *sql.Tx, id string) (*model.Contest, error) {
	var out *model.Contest
	r.s.read(func(d *data) {
		if c, ok := d.contests[id]; ok {
			c = storedContest(&c)
			out = &c
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r contestRepo) FindBySlug(_ context.Context, slug string) (*model.Contest, error) {
	var out *model.Contest
	r.s.read(func(d *data) {
		for _, c := range d.contests {
			if c.Slug == slug {
				c = storedContest(&c)
				out = &c
				return
			}
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r contestRepo) LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return r.FindByID(ctx, tx, id)
}

func (r contestRepo) LockByIDShared(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return r.FindByID(ctx, tx, id)
}

func (r contestRepo) update(id string, fn func(c *model.Contest)) error {
	return r.s.write(func(d *data) error {
		c, ok := d.contests[id]
		if !ok {
			return common.ErrNotFound
		}
		fn(&c)
		c.UpdatedAt = r.s.now()
		d.contests[id] = storedContest(&c)
		return nil
	})
}

func (r contestRepo) Update(_ context.Context, _ *sql.Tx, in *model.Contest) error {
	return r.update(in.ID, func(c *model.Contest) {
		c.Title = in.Title
		c.Description = in.Description
		c.ProblemIDs = in.ProblemIDs
		c.StartTime = in.StartTime
		c.EndTime = in.EndTime
		c.DurationMins = in.DurationMins
		c.IsPublic = in.IsPublic
		c.InviteCode = in.InviteCode
		c.LeaderboardFrozen = in.LeaderboardFrozen
	})
}

func (r contestRepo) UpdateStatus(_ context.Context, _ *sql.Tx, id string, status model.ContestStatus) error {
	return r.update(id, func(c *model.Contest) { c.Status = status })
}

func (r contestRepo) IncrementParticipants(_ context.Context, _ *sql.Tx, id string) error {
	return r.update(id, func(c *model.Contest) { c.ParticipantCount++ })
}

func (r contestRepo) SetFinalized(_ context.Context, _ *sql.Tx, id string, winnerIDs []string, at time.Time) error {
	return r.update(id, func(c *model.Contest) {
		c.WinnerIDs = winnerIDs
		if c.FinalizedAt == nil {
			c.FinalizedAt = &at
		}
	})
}

func (r contestRepo) List(_ context.Context, filter repository.ContestFilter, limit, offset int) ([]model.Contest, int, error) {
	var contests []model.Contest
	r.s.read(func(d *data) {
		for _, c := range d.contests {
			if filter.Status != "" && c.Status != filter.Status {
				continue
			}
			if filter.PublicOnly && (!c.IsPublic || c.Status == model.ContestDraft) {
				continue
			}
			contests = append(contests, storedContest(&c))
		}
	})
	slices.SortFunc(contests, func(a, b model.Contest) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return page(contests, limit, offset), len(contests), nil
}
