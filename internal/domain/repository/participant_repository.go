package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

type ParticipantRepository interface {
	Create(ctx context.Context, tx *sql.Tx, p *model.ContestParticipant) error
	Find(ctx context.Context, tx *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error)
	// FindForUpdate reads the row with SELECT ... FOR UPDATE. Every scoring unit
	// takes this lock before touching the participant's standing.
	FindForUpdate(ctx context.Context, tx *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error)
	UpdateScores(ctx context.Context, tx *sql.Tx, p *model.ContestParticipant) error
	// ListByContest returns every participant in board order.
	ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.ContestParticipant, error)
	SetFinalRank(ctx context.Context, tx *sql.Tx, id string, rank int) error
	// Standings pages the contest board, optionally for one mode.
	Standings(ctx context.Context, contestID string, mode model.Mode, limit, offset int) ([]model.ContestLeaderboardEntry, int, error)
	RecentByPlayer(ctx context.Context, playerID string, limit int) ([]model.ParticipantSummary, error)
}

type pgParticipantRepository struct {
	db *sql.DB
}

func NewPgParticipantRepository(db *sql.DB) ParticipantRepository {
	return &pgParticipantRepository{db: db}
}

const (
	participantColumns = `cp.id, cp.contest_id, cp.player_id, cp.mode, cp.raw_score, cp.accuracy_score, cp.xp_score,
               cp.final_rating, cp.problems_solved, cp.penalty_mins, cp.xp_earned, cp.last_solved_at,
               cp.final_rank, cp.joined_at`

	boardOrder = `cp.final_rating DESC, cp.last_solved_at ASC NULLS LAST, cp.joined_at ASC, cp.id ASC`
)

func participantDest(p *model.ContestParticipant) []any {
	return []any{&p.ID, &p.ContestID, &p.PlayerID, &p.Mode, &p.RawScore, &p.AccuracyScore, &p.XPScore,
		&p.FinalRating, &p.ProblemsSolved, &p.PenaltyMins, &p.XPEarned, &p.LastSolvedAt,
		&p.FinalRank, &p.JoinedAt}
}

func (r *pgParticipantRepository) Create(ctx context.Context, tx *sql.Tx, p *model.ContestParticipant) error {
	query := `INSERT INTO contest_participants (id, contest_id, player_id, mode, joined_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := conn(r.db, tx).ExecContext(ctx, query, p.ID, p.ContestID, p.PlayerID, p.Mode, p.JoinedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("player already joined this contest: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgParticipantRepository.Create: %w", err)
	}
	return nil
}

func (r *pgParticipantRepository) find(ctx context.Context, tx *sql.Tx, op, suffix, contestID, playerID string) (*model.ContestParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM contest_participants cp
	          WHERE cp.contest_id = $1 AND cp.player_id = $2` + suffix
	p := &model.ContestParticipant{}
	if err := conn(r.db, tx).QueryRowContext(ctx, query, contestID, playerID).Scan(participantDest(p)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgParticipantRepository.%s: %w", op, err)
	}
	return p, nil
}

func (r *pgParticipantRepository) Find(ctx context.Context, tx *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error) {
	return r.find(ctx, tx, "Find", "", contestID, playerID)
}

func (r *pgParticipantRepository) FindForUpdate(ctx context.Context, tx *sql.Tx, contestID, playerID string) (*model.ContestParticipant, error) {
	return r.find(ctx, tx, "FindForUpdate", " FOR UPDATE", contestID, playerID)
}

func (r *pgParticipantRepository) UpdateScores(ctx context.Context, tx *sql.Tx, p *model.ContestParticipant) error {
	query := `UPDATE contest_participants SET
                raw_score = $1, accuracy_score = $2, xp_score = $3, final_rating = $4,
                problems_solved = $5, penalty_mins = $6, xp_earned = $7, last_solved_at = $8
              WHERE id = $9`
	res, err := conn(r.db, tx).ExecContext(ctx, query, p.RawScore, p.AccuracyScore, p.XPScore, p.FinalRating,
		p.ProblemsSolved, p.PenaltyMins, p.XPEarned, p.LastSolvedAt, p.ID)
	if err != nil {
		return fmt.Errorf("pgParticipantRepository.UpdateScores: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgParticipantRepository) ListByContest(ctx context.Context, tx *sql.Tx, contestID string) ([]model.ContestParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM contest_participants cp
	          WHERE cp.contest_id = $1 ORDER BY ` + boardOrder
	rows, err := conn(r.db, tx).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgParticipantRepository.ListByContest query: %w", err)
	}
	defer rows.Close()

	out := []model.ContestParticipant{}
	for rows.Next() {
		var p model.ContestParticipant
		if err := rows.Scan(participantDest(&p)...); err != nil {
			return nil, fmt.Errorf("pgParticipantRepository.ListByContest scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgParticipantRepository.ListByContest rows.Err: %w", err)
	}
	return out, nil
}

func (r *pgParticipantRepository) SetFinalRank(ctx context.Context, tx *sql.Tx, id string, rank int) error {
	if _, err := conn(r.db, tx).ExecContext(ctx, `UPDATE contest_participants SET final_rank = $1 WHERE id = $2`, rank, id); err != nil {
		return fmt.Errorf("pgParticipantRepository.SetFinalRank: %w", err)
	}
	return nil
}

func (r *pgParticipantRepository) Standings(ctx context.Context, contestID string, mode model.Mode, limit, offset int) ([]model.ContestLeaderboardEntry, int, error) {
	where := ` WHERE cp.contest_id = $1`
	args := []any{contestID}
	if mode != "" {
		where += ` AND cp.mode = $2`
		args = append(args, mode)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contest_participants cp`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgParticipantRepository.Standings count: %w", err)
	}

	query := `SELECT cp.id, cp.player_id, u.name, pl.tier, pl.sub_rank, cp.mode, cp.raw_score, cp.accuracy_score,
                     cp.xp_score, cp.final_rating, cp.problems_solved, cp.penalty_mins, cp.last_solved_at, cp.final_rank
              FROM contest_participants cp
              JOIN players pl ON pl.id = cp.player_id
              JOIN users u ON u.id = pl.user_id` + where +
		` ORDER BY ` + boardOrder + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgParticipantRepository.Standings query: %w", err)
	}
	defer rows.Close()

	entries := []model.ContestLeaderboardEntry{}
	for rows.Next() {
		var e model.ContestLeaderboardEntry
		if err := rows.Scan(&e.ParticipantID, &e.PlayerID, &e.Name, &e.Tier, &e.SubRank, &e.Mode, &e.RawScore,
			&e.AccuracyScore, &e.XPScore, &e.FinalRating, &e.ProblemsSolved, &e.PenaltyMins, &e.LastSolvedAt, &e.FinalRank); err != nil {
			return nil, 0, fmt.Errorf("pgParticipantRepository.Standings scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgParticipantRepository.Standings rows.Err: %w", err)
	}
	return entries, total, nil
}

func (r *pgParticipantRepository) RecentByPlayer(ctx context.Context, playerID string, limit int) ([]model.ParticipantSummary, error) {
	query := `SELECT ` + participantColumns + `, c.title, c.status
              FROM contest_participants cp
              JOIN contests c ON c.id = cp.contest_id
              WHERE cp.player_id = $1
              ORDER BY cp.joined_at DESC
              LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgParticipantRepository.RecentByPlayer query: %w", err)
	}
	defer rows.Close()

	out := []model.ParticipantSummary{}
	for rows.Next() {
		var s model.ParticipantSummary
		dest := append(participantDest(&s.ContestParticipant), &s.ContestTitle, &s.ContestStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("pgParticipantRepository.RecentByPlayer scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgParticipantRepository.RecentByPlayer rows.Err: %w", err)
	}
	return out, nil
}
