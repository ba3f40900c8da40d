package repository

import (
	"context"
	"database/sql"
	"fmt"
	"tle_arena/internal/domain/model"
)

// XPLedgerRepository is append-only: there is no update or delete.
type XPLedgerRepository interface {
	Append(ctx context.Context, tx *sql.Tx, e *model.XPLedgerEntry) error
	// AppendOnce inserts unless an entry for (player, contest, source) exists and
	// reports whether it inserted. Only CONTEST_JOIN and RANK_BONUS are unique.
	AppendOnce(ctx context.Context, tx *sql.Tx, e *model.XPLedgerEntry) (bool, error)
	Exists(ctx context.Context, tx *sql.Tx, playerID, contestID string, source model.XPSource) (bool, error)
	ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]model.XPLedgerEntry, int, error)
	SumByPlayer(ctx context.Context, tx *sql.Tx, playerID string) (int, error)
}

type pgXPLedgerRepository struct {
	db *sql.DB
}

func NewPgXPLedgerRepository(db *sql.DB) XPLedgerRepository {
	return &pgXPLedgerRepository{db: db}
}

const ledgerInsert = `INSERT INTO xp_ledger (id, player_id, contest_id, source, base_xp, multiplier, final_xp, earned_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func ledgerArgs(e *model.XPLedgerEntry) []any {
	return []any{e.ID, e.PlayerID, e.ContestID, e.Source, e.BaseXP, e.Multiplier, e.FinalXP, e.EarnedAt}
}

func (r *pgXPLedgerRepository) Append(ctx context.Context, tx *sql.Tx, e *model.XPLedgerEntry) error {
	if _, err := conn(r.db, tx).ExecContext(ctx, ledgerInsert, ledgerArgs(e)...); err != nil {
		return fmt.Errorf("pgXPLedgerRepository.Append: %w", err)
	}
	return nil
}

// AppendOnce relies on the partial unique index; ON CONFLICT keeps the
// surrounding transaction usable when the row already exists.
func (r *pgXPLedgerRepository) AppendOnce(ctx context.Context, tx *sql.Tx, e *model.XPLedgerEntry) (bool, error) {
	query := ledgerInsert + `
	          ON CONFLICT (player_id, contest_id, source) WHERE source IN ('CONTEST_JOIN', 'RANK_BONUS')
	          DO NOTHING`
	res, err := conn(r.db, tx).ExecContext(ctx, query, ledgerArgs(e)...)
	if err != nil {
		return false, fmt.Errorf("pgXPLedgerRepository.AppendOnce: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgXPLedgerRepository.AppendOnce rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgXPLedgerRepository) Exists(ctx context.Context, tx *sql.Tx, playerID, contestID string, source model.XPSource) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM xp_ledger WHERE player_id = $1 AND contest_id = $2 AND source = $3)`
	var ok bool
	if err := conn(r.db, tx).QueryRowContext(ctx, query, playerID, contestID, source).Scan(&ok); err != nil {
		return false, fmt.Errorf("pgXPLedgerRepository.Exists: %w", err)
	}
	return ok, nil
}

func (r *pgXPLedgerRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]model.XPLedgerEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM xp_ledger WHERE player_id = $1`, playerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgXPLedgerRepository.ListByPlayer count: %w", err)
	}

	query := `SELECT l.id, l.player_id, l.contest_id, l.source, l.base_xp, l.multiplier, l.final_xp, l.earned_at, c.title
              FROM xp_ledger l
              LEFT JOIN contests c ON c.id = l.contest_id
              WHERE l.player_id = $1
              ORDER BY l.earned_at DESC, l.id
              LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgXPLedgerRepository.ListByPlayer query: %w", err)
	}
	defer rows.Close()

	entries := []model.XPLedgerEntry{}
	for rows.Next() {
		var e model.XPLedgerEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.ContestID, &e.Source, &e.BaseXP, &e.Multiplier, &e.FinalXP,
			&e.EarnedAt, &e.ContestTitle); err != nil {
			return nil, 0, fmt.Errorf("pgXPLedgerRepository.ListByPlayer scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgXPLedgerRepository.ListByPlayer rows.Err: %w", err)
	}
	return entries, total, nil
}

func (r *pgXPLedgerRepository) SumByPlayer(ctx context.Context, tx *sql.Tx, playerID string) (int, error) {
	var sum int
	err := conn(r.db, tx).QueryRowContext(ctx, `SELECT COALESCE(SUM(final_xp), 0) FROM xp_ledger WHERE player_id = $1`, playerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("pgXPLedgerRepository.SumByPlayer: %w", err)
	}
	return sum, nil
}
