package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

// PlayerRepository persists player profiles. XP, level and tier are written only
// by the ledger service inside its transaction.
type PlayerRepository interface {
	Create(ctx context.Context, tx *sql.Tx, p *model.Player) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Player, error)
	FindByUserID(ctx context.Context, userID string) (*model.Player, error)
	// LockByID reads the row with SELECT ... FOR UPDATE.
	LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Player, error)
	AddXP(ctx context.Context, tx *sql.Tx, id string, delta int) (int, error)
	UpdateLevel(ctx context.Context, tx *sql.Tx, id string, level int, tier model.Tier, subRank string) error
	RecordContestJoin(ctx context.Context, tx *sql.Tx, id string, at time.Time) error
	RecordWin(ctx context.Context, tx *sql.Tx, id string) error
	UpdateStreak(ctx context.Context, tx *sql.Tx, id string, streakDays int, activeOn time.Time) error
	UpdatePreferredMode(ctx context.Context, tx *sql.Tx, id string, mode model.Mode) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id, status string) error
	// ListGlobal returns ACTIVE players by XP descending, optionally filtered by tier.
	ListGlobal(ctx context.Context, tier model.Tier, limit, offset int) ([]model.Player, int, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type pgPlayerRepository struct {
	db *sql.DB
}

func NewPgPlayerRepository(db *sql.DB) PlayerRepository {
	return &pgPlayerRepository{db: db}
}

const playerSelect = `
        SELECT p.id, p.user_id, p.xp, p.level, p.tier, p.sub_rank, p.preferred_mode,
               p.total_contests, p.total_wins, p.streak_days, p.last_active_on, p.last_contest_at,
               p.status, p.created_at, p.updated_at, u.name
        FROM players p
        JOIN users u ON u.id = p.user_id`

func scanPlayer(row rowScanner) (*model.Player, error) {
	p := &model.Player{}
	err := row.Scan(&p.ID, &p.UserID, &p.XP, &p.Level, &p.Tier, &p.SubRank, &p.PreferredMode,
		&p.TotalContests, &p.TotalWins, &p.StreakDays, &p.LastActiveOn, &p.LastContestAt,
		&p.Status, &p.CreatedAt, &p.UpdatedAt, &p.Name)
	return p, err
}

func (r *pgPlayerRepository) Create(ctx context.Context, tx *sql.Tx, p *model.Player) error {
	query := `INSERT INTO players (id, user_id, xp, level, tier, sub_rank, preferred_mode, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err := conn(r.db, tx).QueryRowContext(ctx, query, p.ID, p.UserID, p.XP, p.Level, p.Tier, p.SubRank, p.PreferredMode, p.Status).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("player for user %s already exists: %w", p.UserID, common.ErrConflict)
		}
		return fmt.Errorf("pgPlayerRepository.Create: %w", err)
	}
	return nil
}

func (r *pgPlayerRepository) findOne(ctx context.Context, q querier, op, where string, arg any) (*model.Player, error) {
	p, err := scanPlayer(q.QueryRowContext(ctx, playerSelect+" "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgPlayerRepository.%s: %w", op, err)
	}
	return p, nil
}

func (r *pgPlayerRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*model.Player, error) {
	return r.findOne(ctx, conn(r.db, tx), "FindByID", "WHERE p.id = $1", id)
}

func (r *pgPlayerRepository) FindByUserID(ctx context.Context, userID string) (*model.Player, error) {
	return r.findOne(ctx, r.db, "FindByUserID", "WHERE p.user_id = $1", userID)
}

func (r *pgPlayerRepository) LockByID(ctx context.Context, tx *sql.Tx, id string) (*model.Player, error) {
	return r.findOne(ctx, conn(r.db, tx), "LockByID", "WHERE p.id = $1 FOR UPDATE OF p", id)
}

func (r *pgPlayerRepository) AddXP(ctx context.Context, tx *sql.Tx, id string, delta int) (int, error) {
	query := `UPDATE players SET xp = xp + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING xp`
	var xp int
	if err := conn(r.db, tx).QueryRowContext(ctx, query, delta, id).Scan(&xp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("pgPlayerRepository.AddXP: %w", err)
	}
	return xp, nil
}

func (r *pgPlayerRepository) exec(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	res, err := conn(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgPlayerRepository.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgPlayerRepository) UpdateLevel(ctx context.Context, tx *sql.Tx, id string, level int, tier model.Tier, subRank string) error {
	return r.exec(ctx, tx, "UpdateLevel",
		`UPDATE players SET level = $1, tier = $2, sub_rank = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $4`,
		level, tier, subRank, id)
}

func (r *pgPlayerRepository) RecordContestJoin(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	return r.exec(ctx, tx, "RecordContestJoin",
		`UPDATE players SET total_contests = total_contests + 1, last_contest_at = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		at, id)
}

func (r *pgPlayerRepository) RecordWin(ctx context.Context, tx *sql.Tx, id string) error {
	return r.exec(ctx, tx, "RecordWin",
		`UPDATE players SET total_wins = total_wins + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
}

func (r *pgPlayerRepository) UpdateStreak(ctx context.Context, tx *sql.Tx, id string, streakDays int, activeOn time.Time) error {
	return r.exec(ctx, tx, "UpdateStreak",
		`UPDATE players SET streak_days = $1, last_active_on = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		streakDays, activeOn, id)
}

func (r *pgPlayerRepository) UpdatePreferredMode(ctx context.Context, tx *sql.Tx, id string, mode model.Mode) error {
	return r.exec(ctx, tx, "UpdatePreferredMode",
		`UPDATE players SET preferred_mode = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, mode, id)
}

func (r *pgPlayerRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	return r.exec(ctx, tx, "UpdateStatus",
		`UPDATE players SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, status, id)
}

func (r *pgPlayerRepository) ListGlobal(ctx context.Context, tier model.Tier, limit, offset int) ([]model.Player, int, error) {
	where := ` WHERE p.status = $1`
	args := []any{model.PlayerStatusActive}
	if tier != "" {
		where += ` AND p.tier = $2`
		args = append(args, tier)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgPlayerRepository.ListGlobal count: %w", err)
	}

	query := playerSelect + where + fmt.Sprintf(" ORDER BY p.xp DESC, p.id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgPlayerRepository.ListGlobal query: %w", err)
	}
	defer rows.Close()

	players := []model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgPlayerRepository.ListGlobal scan: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgPlayerRepository.ListGlobal rows.Err: %w", err)
	}
	return players, total, nil
}

func (r *pgPlayerRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pgPlayerRepository.ListIDs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgPlayerRepository.ListIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
