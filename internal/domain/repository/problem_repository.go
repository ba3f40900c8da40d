package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type ProblemRepository interface {
	Create(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error)
	FindBySlug(ctx context.Context, slug string) (*model.Problem, error)
	// FindByIDs returns the problems in the order of ids, skipping unknown ids.
	FindByIDs(ctx context.Context, ids []string) ([]model.Problem, error)
	List(ctx context.Context, limit, offset int, difficulty model.Difficulty, tags []string, searchTerm string) ([]model.Problem, int, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `p.id, p.slug, p.title, p.description, p.difficulty, p.points, p.tags,
               p.time_limit_ms, p.memory_limit_mb, p.created_by, p.created_at, p.updated_at`

func scanProblem(row rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var tags []byte
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Difficulty, &p.Points, &tags,
		&p.TimeLimitMs, &p.MemoryLimitMb, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) Create(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	tags, err := encodeStrings(p.Tags)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.Create encode: %w", err)
	}
	query := `INSERT INTO problems (id, slug, title, description, difficulty, points, tags, time_limit_ms, memory_limit_mb, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at, updated_at`
	err = conn(r.db, tx).QueryRowContext(ctx, query, p.ID, p.Slug, p.Title, p.Description, p.Difficulty, p.Points, tags,
		p.TimeLimitMs, p.MemoryLimitMb, p.CreatedBy).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Problem, error) {
	p, err := scanProblem(conn(r.db, tx).QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems p WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindByID: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) FindBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	p, err := scanProblem(r.db.QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems p WHERE p.slug = $1`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindBySlug: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Problem, error) {
	if len(ids) == 0 {
		return []model.Problem{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.id IN (` + placeholders(1, len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindByIDs query: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Problem, len(ids))
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProblemRepository.FindByIDs scan: %w", err)
		}
		byID[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindByIDs rows.Err: %w", err)
	}

	out := make([]model.Problem, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// List builds its filter dynamically; each tag must be present on the problem.
func (r *pgProblemRepository) List(ctx context.Context, limit, offset int, difficulty model.Difficulty, tags []string, searchTerm string) ([]model.Problem, int, error) {
	var conditions []string
	var args []any
	argID := 1

	if len(tags) > 0 {
		encoded, err := encodeStrings(tags)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.List encode: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("p.tags @> $%d::jsonb", argID))
		args = append(args, encoded)
		argID++
	}

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}

	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argID, argID+1))
		likeTerm := "%" + searchTerm + "%"
		args = append(args, likeTerm, likeTerm)
		argID += 2
	}

	var where string
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List count: %w", err)
	}

	query := `SELECT ` + problemColumns + ` FROM problems p` + where +
		fmt.Sprintf(" ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.List scan: %w", err)
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.List rows.Err: %w", err)
	}
	return problems, total, nil
}
