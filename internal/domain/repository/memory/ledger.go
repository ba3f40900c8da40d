package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type ledgerRepo struct{ s *Store }

func oncePerContest(src model.XPSource) bool {
	return src == model.SourceContestJoin || src == model.SourceRankBonus
}

func ledgerHas(d *data, playerID, contestID string, source model.XPSource) bool {
	for _, e := range d.ledger {
		if e.PlayerID == playerID && e.Source == source && e.ContestID != nil && *e.ContestID == contestID {
			return true
		}
	}
	return false
}

func (r ledgerRepo) Append(_ context.Context, _ *sql.Tx, e *model.XPLedgerEntry) error {
	return r.s.write(func(d *data) error {
		if oncePerContest(e.Source) && e.ContestID != nil && ledgerHas(d, e.PlayerID, *e.ContestID, e.Source) {
			return fmt.Errorf("%s already granted: %w", e.Source, common.ErrConflict)
		}
		d.ledger = append(d.ledger, *e)
		return nil
	})
}

func (r ledgerRepo) AppendOnce(_ context.Context, _ *sql.Tx, e *model.XPLedgerEntry) (bool, error) {
	inserted := false
	err := r.s.write(func(d *data) error {
		if oncePerContest(e.Source) && e.ContestID != nil && ledgerHas(d, e.PlayerID, *e.ContestID, e.Source) {
			return nil
		}
		d.ledger = append(d.ledger, *e)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r ledgerRepo) Exists(_ context.Context, _ *sql.Tx, playerID, contestID string, source model.XPSource) (bool, error) {
	found := false
	r.s.read(func(d *data) { found = ledgerHas(d, playerID, contestID, source) })
	return found, nil
}

func (r ledgerRepo) ListByPlayer(_ context.Context, playerID string, limit, offset int) ([]model.XPLedgerEntry, int, error) {
	var entries []model.XPLedgerEntry
	r.s.read(func(d *data) {
		// newest first, so entries with equal timestamps keep reverse append order
		for i := len(d.ledger) - 1; i >= 0; i-- {
			e := d.ledger[i]
			if e.PlayerID != playerID {
				continue
			}
			if e.ContestID != nil {
				if c, ok := d.contests[*e.ContestID]; ok {
					title := c.Title
					e.ContestTitle = &title
				}
			}
			entries = append(entries, e)
		}
	})
	slices.SortStableFunc(entries, func(a, b model.XPLedgerEntry) int {
		return b.EarnedAt.Compare(a.EarnedAt)
	})
	return page(entries, limit, offset), len(entries), nil
}

func (r ledgerRepo) SumByPlayer(_ context.Context, _ *sql.Tx, playerID string) (int, error) {
	sum := 0
	r.s.read(func(d *data) {
		for _, e := range d.ledger {
			if e.PlayerID == playerID {
				sum += e.FinalXP
			}
		}
	})
	return sum, nil
}
