package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	// FindForUpdate locks the submission row so a verdict is applied once.
	FindForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error)
	// CountPriorFailures counts non-accepted submissions, pending included, for the
	// (player, problem, contest) triple. A nil contest means practice.
	CountPriorFailures(ctx context.Context, tx *sql.Tx, playerID, problemID string, contestID *string) (int, error)
	HasCredited(ctx context.Context, tx *sql.Tx, playerID, problemID, contestID string) (bool, error)
	// ApplyVerdict writes the judge outcome: verdict, points, runtime, memory, credited, judged_at.
	ApplyVerdict(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	ListByPlayer(ctx context.Context, playerID, problemID string, limit, offset int) ([]model.Submission, int, error)
	Stats(ctx context.Context, playerID string) (model.SubmissionStats, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, player_id, problem_id, contest_id, language, code, verdict, wrong_attempts,
               points_earned, runtime_ms, memory_mb, credited, submitted_at, judged_at`

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.PlayerID, &s.ProblemID, &s.ContestID, &s.Language, &s.Code, &s.Verdict, &s.WrongAttempts,
		&s.PointsEarned, &s.RuntimeMs, &s.MemoryMb, &s.Credited, &s.SubmittedAt, &s.JudgedAt)
	return s, err
}

func (r *pgSubmissionRepository) Create(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, player_id, problem_id, contest_id, language, code, verdict, wrong_attempts, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(r.db, tx).ExecContext(ctx, query, sub.ID, sub.PlayerID, sub.ProblemID, sub.ContestID, sub.Language,
		sub.Code, sub.Verdict, sub.WrongAttempts, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) FindForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`
	s, err := scanSubmission(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindForUpdate: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) CountPriorFailures(ctx context.Context, tx *sql.Tx, playerID, problemID string, contestID *string) (int, error) {
	query := `SELECT COUNT(*) FROM submissions
	          WHERE player_id = $1 AND problem_id = $2 AND contest_id IS NOT DISTINCT FROM $3
	            AND verdict <> $4`

	var n int
	err := conn(r.db, tx).QueryRowContext(ctx, query, playerID, problemID, contestID, model.VerdictAccepted).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountPriorFailures: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) HasCredited(ctx context.Context, tx *sql.Tx, playerID, problemID, contestID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM submissions
	          WHERE player_id = $1 AND problem_id = $2 AND contest_id = $3 AND credited)`
	var ok bool
	if err := conn(r.db, tx).QueryRowContext(ctx, query, playerID, problemID, contestID).Scan(&ok); err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.HasCredited: %w", err)
	}
	return ok, nil
}

func (r *pgSubmissionRepository) ApplyVerdict(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `UPDATE submissions SET verdict = $1, points_earned = $2, runtime_ms = $3, memory_mb = $4,
                credited = $5, judged_at = $6
              WHERE id = $7`
	_, err := conn(r.db, tx).ExecContext(ctx, query, sub.Verdict, sub.PointsEarned, sub.RuntimeMs, sub.MemoryMb,
		sub.Credited, sub.JudgedAt, sub.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("problem already credited for this contest: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.ApplyVerdict: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) ListByPlayer(ctx context.Context, playerID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	where := ` WHERE player_id = $1`
	args := []any{playerID}
	if problemID != "" {
		where += ` AND problem_id = $2`
		args = append(args, problemID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByPlayer count: %w", err)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions` + where +
		fmt.Sprintf(` ORDER BY submitted_at DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByPlayer query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByPlayer scan: %w", err)
		}
		s.Code = "" // listings never carry source
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByPlayer rows.Err: %w", err)
	}
	return subs, total, nil
}

func (r *pgSubmissionRepository) Stats(ctx context.Context, playerID string) (model.SubmissionStats, error) {
	query := `SELECT COUNT(*),
                     COUNT(*) FILTER (WHERE verdict = 'ACCEPTED'),
                     COUNT(*) FILTER (WHERE verdict = 'WRONG_ANSWER')
              FROM submissions WHERE player_id = $1`
	var st model.SubmissionStats
	if err := r.db.QueryRowContext(ctx, query, playerID).Scan(&st.Total, &st.Accepted, &st.WrongAnswer); err != nil {
		return st, fmt.Errorf("pgSubmissionRepository.Stats: %w", err)
	}
	return st, nil
}
