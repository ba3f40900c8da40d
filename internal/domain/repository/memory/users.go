package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, _ *sql.Tx, u *model.User) error {
	return r.s.write(func(d *data) error {
		email := strings.ToLower(u.Email)
		for _, existing := range d.users {
			if existing.Email == email {
				return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
			}
		}
		now := r.s.now()
		u.Email = email
		u.CreatedAt, u.UpdatedAt = now, now
		d.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(email)
	var out *model.User
	r.s.read(func(d *data) {
		for _, u := range d.users {
			if u.Email == email {
				out = &u
				return
			}
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	var out *model.User
	r.s.read(func(d *data) {
		if u, ok := d.users[id]; ok {
			out = &u
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

type problemRepo struct{ s *Store }

func (r problemRepo) Create(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	return r.s.write(func(d *data) error {
		for _, existing := range d.problems {
			if existing.Slug == p.Slug {
				return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
			}
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		stored := *p
		stored.Tags = append([]string{}, p.Tags...)
		d.problems[p.ID] = stored
		return nil
	})
}

func (r problemRepo) FindByID(_ context.Context, _ *sql.Tx, id string) (*model.Problem, error) {
	var out *model.Problem
	r.s.read(func(d *data) {
		if p, ok := d.problems[id]; ok {
			out = &p
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r problemRepo) FindBySlug(_ context.Context, slug string) (*model.Problem, error) {
	var out *model.Problem
	r.s.read(func(d *data) {
		for _, p := range d.problems {
			if p.Slug == slug {
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}

func (r problemRepo) FindByIDs(_ context.Context, ids []string) ([]model.Problem, error) {
	out := make([]model.Problem, 0, len(ids))
	r.s.read(func(d *data) {
		for _, id := range ids {
			if p, ok := d.problems[id]; ok {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r problemRepo) List(_ context.Context, limit, offset int, difficulty model.Difficulty, tags []string, searchTerm string) ([]model.Problem, int, error) {
	var matched []model.Problem
	term := strings.ToLower(searchTerm)
	r.s.read(func(d *data) {
		for _, p := range d.problems {
			if difficulty != "" && p.Difficulty != difficulty {
				continue
			}
			if !hasAllTags(p.Tags, tags) {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(p.Title), term) && !strings.Contains(strings.ToLower(p.Description), term) {
				continue
			}
			matched = append(matched, p)
		}
	})
	sortNewestFirst(matched)
	return page(matched, limit, offset), len(matched), nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortNewestFirst(ps []model.Problem) {
	slices.SortFunc(ps, func(a, b model.Problem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
