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

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	return r.s.write(func(d *data) error {
		d.submissions[sub.ID] = *sub
		return nil
	})
}

func (r submissionRepo) FindByID(_ context.Context, id string) (*model.Submission, error) {
	var (
		sub model.Submission
		ok  bool
	)
	r.s.read(func(d *data) { sub, ok = d.submissions[id] })
	if !ok {
		return nil, common.ErrNotFound
	}
	return &sub, nil
}

func (r submissionRepo) FindForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.Submission, error) {
	return r.FindByID(ctx, id)
}

func sameContest(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r submissionRepo) CountPriorFailures(_ context.Context, _ *sql.Tx, playerID, problemID string, contestID *string) (int, error) {
	n := 0
	r.s.read(func(d *data) {
		for _, sub := range d.submissions {
			if sub.PlayerID == playerID && sub.ProblemID == problemID && sameContest(sub.ContestID, contestID) &&
				sub.Verdict != model.VerdictAccepted {
				n++
			}
		}
	})
	return n, nil
}

func (r submissionRepo) HasCredited(_ context.Context, _ *sql.Tx, playerID, problemID, contestID string) (bool, error) {
	found := false
	r.s.read(func(d *data) {
		for _, sub := range d.submissions {
			if sub.Credited && sub.PlayerID == playerID && sub.ProblemID == problemID && sameContest(sub.ContestID, &contestID) {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r submissionRepo) ApplyVerdict(_ context.Context, _ *sql.Tx, in *model.Submission) error {
	return r.s.write(func(d *data) error {
		sub, ok := d.submissions[in.ID]
		if !ok {
			return common.ErrNotFound
		}
		if in.Credited {
			for id, other := range d.submissions {
				if id != in.ID && other.Credited && other.PlayerID == sub.PlayerID &&
					other.ProblemID == sub.ProblemID && sameContest(other.ContestID, sub.ContestID) {
					return fmt.Errorf("problem already credited for this contest: %w", common.ErrConflict)
				}
			}
		}
		sub.Verdict = in.Verdict
		sub.PointsEarned = in.PointsEarned
		sub.RuntimeMs = in.RuntimeMs
		sub.MemoryMb = in.MemoryMb
		sub.Credited = in.Credited
		sub.JudgedAt = in.JudgedAt
		d.submissions[in.ID] = sub
		return nil
	})
}

func (r submissionRepo) ListByPlayer(_ context.Context, playerID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	var subs []model.Submission
	r.s.read(func(d *data) {
		for _, sub := range d.submissions {
			if sub.PlayerID != playerID || (problemID != "" && sub.ProblemID != problemID) {
				continue
			}
			sub.Code = ""
			subs = append(subs, sub)
		}
	})
	slices.SortFunc(subs, func(a, b model.Submission) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return page(subs, limit, offset), len(subs), nil
}

func (r submissionRepo) Stats(_ context.Context, playerID string) (model.SubmissionStats, error) {
	var st model.SubmissionStats
	r.s.read(func(d *data) {
		for _, sub := range d.submissions {
			if sub.PlayerID != playerID {
				continue
			}
			st.Total++
			switch sub.Verdict {
			case model.VerdictAccepted:
				st.Accepted++
			case model.VerdictWrongAnswer:
				st.WrongAnswer++
			}
		}
	})
	return st, nil
}
