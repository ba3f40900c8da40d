package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type ContestFilter struct {
	Status     model.ContestStatus
	PublicOnly bool
}

type ContestRepository interface {
	Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	FindBySlug(ctx context.Context, slug string) (*model.Contest, error)
	// LockByID reads the row with SELECT ... FOR UPDATE.
	LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	// LockByIDShared reads the row with SELECT ... FOR SHARE, so status changes
	// wait for the holder to commit.
	LockByIDShared(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error)
	// Update writes the organizer-editable fields.
	Update(ctx context.Context, tx *sql.Tx, c *model.Contest) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status model.ContestStatus) error
	IncrementParticipants(ctx context.Context, tx *sql.Tx, id string) error
	// SetFinalized stores the winners. finalized_at keeps its first value.
	SetFinalized(ctx context.Context, tx *sql.Tx, id string, winnerIDs []string, at time.Time) error
	List(ctx context.Context, filter ContestFilter, limit, offset int) ([]model.Contest, int, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestSelect = `
        SELECT id, slug, title, description, problem_ids, start_time, end_time, duration_mins,
               is_public, invite_code, created_by, status, participant_count, leaderboard_frozen,
               winner_ids, finalized_at, created_at, updated_at
        FROM contests`

func scanContest(row rowScanner) (*model.Contest, error) {
	c := &model.Contest{}
	var problemIDs, winnerIDs []byte
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &problemIDs, &c.StartTime, &c.EndTime, &c.DurationMins,
		&c.IsPublic, &c.InviteCode, &c.CreatedBy, &c.Status, &c.ParticipantCount, &c.LeaderboardFrozen,
		&winnerIDs, &c.FinalizedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.ProblemIDs, err = decodeStrings(problemIDs); err != nil {
		return nil, fmt.Errorf("decode problem_ids: %w", err)
	}
	if c.WinnerIDs, err = decodeStrings(winnerIDs); err != nil {
		return nil, fmt.Errorf("decode winner_ids: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) Create(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	problemIDs, err := encodeStrings(c.ProblemIDs)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Create encode: %w", err)
	}
	query := `INSERT INTO contests (id, slug, title, description, problem_ids, start_time, end_time, duration_mins,
	                                is_public, invite_code, created_by, status, leaderboard_frozen)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING created_at, updated_at`
	err = conn(r.db, tx).QueryRowContext(ctx, query, c.ID, c.Slug, c.Title, c.Description, problemIDs, c.StartTime, c.EndTime,
		c.DurationMins, c.IsPublic, c.InviteCode, c.CreatedBy, c.Status, c.LeaderboardFrozen).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.Create: %w", err)
	}
	return nil
}

func (r *pgContestRepository) findOne(ctx context.Context, q querier, op, where string, arg any) (*model.Contest, error) {
	c, err := scanContest(q.QueryRowContext(ctx, contestSelect+" "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.%s: %w", op, err)
	}
	return c, nil
}

func (r *pgContestRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return r.findOne(ctx, conn(r.db, tx), "FindByID", "WHERE id = $1", id)
}

func (r *pgContestRepository) FindBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	return r.findOne(ctx, r.db, "FindBySlug", "WHERE slug = $1", slug)
}

func (r *pgContestRepository) LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return r.findOne(ctx, conn(r.db, tx), "LockByID", "WHERE id = $1 FOR UPDATE", id)
}

func (r *pgContestRepository) LockByIDShared(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	return r.findOne(ctx, conn(r.db, tx), "LockByIDShared", "WHERE id = $1 FOR SHARE", id)
}

func (r *pgContestRepository) exec(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	res, err := conn(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgContestRepository.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestRepository) Update(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	problemIDs, err := encodeStrings(c.ProblemIDs)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Update encode: %w", err)
	}
	return r.exec(ctx, tx, "Update", `UPDATE contests SET
                title = $1, description = $2, problem_ids = $3, start_time = $4, end_time = $5,
                duration_mins = $6, is_public = $7, invite_code = $8, leaderboard_frozen = $9,
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $10`,
		c.Title, c.Description, problemIDs, c.StartTime, c.EndTime, c.DurationMins, c.IsPublic, c.InviteCode,
		c.LeaderboardFrozen, c.ID)
}

func (r *pgContestRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status model.ContestStatus) error {
	return r.exec(ctx, tx, "UpdateStatus",
		`UPDATE contests SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, status, id)
}

func (r *pgContestRepository) IncrementParticipants(ctx context.Context, tx *sql.Tx, id string) error {
	return r.exec(ctx, tx, "IncrementParticipants",
		`UPDATE contests SET participant_count = participant_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
}

func (r *pgContestRepository) SetFinalized(ctx context.Context, tx *sql.Tx, id string, winnerIDs []string, at time.Time) error {
	winners, err := encodeStrings(winnerIDs)
	if err != nil {
		return fmt.Errorf("pgContestRepository.SetFinalized encode: %w", err)
	}
	return r.exec(ctx, tx, "SetFinalized",
		`UPDATE contests SET winner_ids = $1, finalized_at = COALESCE(finalized_at, $2), updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		winners, at, id)
}

func (r *pgContestRepository) List(ctx context.Context, filter ContestFilter, limit, offset int) ([]model.Contest, int, error) {
	var conditions []string
	var args []any
	argID := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	}
	if filter.PublicOnly {
		conditions = append(conditions, "is_public = TRUE", "status <> 'DRAFT'")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.List count: %w", err)
	}

	query := contestSelect + where + fmt.Sprintf(" ORDER BY start_time DESC, id LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.List query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgContestRepository.List scan: %w", err)
		}
		contests = append(contests, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.List rows.Err: %w", err)
	}
	return contests, total, nil
}
