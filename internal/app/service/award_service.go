package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"
)

// SkipReason says why an accepted submission earned no contest credit.
type SkipReason string

const (
	SkipAlreadyCredited SkipReason = "already_credited"
	SkipNoContest       SkipReason = "no_contest"
	SkipNotParticipant  SkipReason = "not_participant"
	SkipContestNotLive  SkipReason = "contest_not_live"
)

type AwardOutcome struct {
	Credited bool
	Skip     SkipReason
	// Points is what the submission records as points_earned.
	Points int
	Solve  *scoring.SolveResult
	Grant  *GrantResult
	Events []model.Event
}

// AwardService applies the idempotency gate and the scoring engine to one
// accepted submission. It runs inside the judge's transaction.
type AwardService struct {
	contests     repository.ContestRepository
	participants repository.ParticipantRepository
	submissions  repository.SubmissionRepository
	players      repository.PlayerRepository
	ledger       *XPLedgerService
	rules        scoring.Rules
	tel          Telemetry
}

func NewAwardService(
	contests repository.ContestRepository,
	participants repository.ParticipantRepository,
	submissions repository.SubmissionRepository,
	players repository.PlayerRepository,
	ledger *XPLedgerService,
	rules scoring.Rules,
	tel Telemetry,
) *AwardService {
	return &AwardService{
		contests:     contests,
		participants: participants,
		submissions:  submissions,
		players:      players,
		ledger:       ledger,
		rules:        rules,
		tel:          tel.withDefaults(),
	}
}

// CreditSolveTx credits an accepted submission at most once per
// (player, problem, contest). The participant row lock taken here serializes
// concurrent acceptances of the same triple. The shared contest lock makes
// finalization wait for in-flight credits, and a credit that arrives after the
// contest left LIVE is skipped: final ranks only reflect verdicts applied while
// the contest was live.
func (s *AwardService) CreditSolveTx(ctx context.Context, tx *sql.Tx, sub *model.Submission, problem *model.Problem, at time.Time) (AwardOutcome, error) {
	points := s.rules.PointsFor(problem)
	if sub.ContestID == nil {
		// practice solve: points are recorded, nothing is scored
		return s.skip(ctx, SkipNoContest, points), nil
	}
	contestID := *sub.ContestID

	contest, err := s.contests.LockByIDShared(ctx, tx, contestID)
	if err != nil {
		return AwardOutcome{}, fmt.Errorf("load contest %s: %w", contestID, err)
	}
	if contest.Status != model.ContestLive {
		return s.skip(ctx, SkipContestNotLive, 0), nil
	}

	participant, err := s.participants.FindForUpdate(ctx, tx, contestID, sub.PlayerID)
	if errors.Is(err, common.ErrNotFound) {
		return s.skip(ctx, SkipNotParticipant, 0), nil
	}
	if err != nil {
		return AwardOutcome{}, fmt.Errorf("lock participant: %w", err)
	}

	credited, err := s.submissions.HasCredited(ctx, tx, sub.PlayerID, sub.ProblemID, contestID)
	if err != nil {
		return AwardOutcome{}, err
	}
	if credited {
		return s.skip(ctx, SkipAlreadyCredited, 0), nil
	}

	board, err := s.participants.ListByContest(ctx, tx, contestID)
	if err != nil {
		return AwardOutcome{}, err
	}
	oldRank := rankIn(board, participant.ID)

	solve := s.rules.ApplySolve(participant.Mode, scoring.StandingOf(participant), scoring.Solve{
		Difficulty:    problem.Difficulty,
		Points:        points,
		WrongAttempts: sub.WrongAttempts,
		SolvedAt:      at,
	})
	solve.Standing.ApplyTo(participant)
	if err := s.participants.UpdateScores(ctx, tx, participant); err != nil {
		return AwardOutcome{}, fmt.Errorf("update participant scores: %w", err)
	}

	grant, err := s.ledger.GrantTx(ctx, tx, Grant{
		PlayerID:   sub.PlayerID,
		ContestID:  &contestID,
		Source:     solve.Source,
		BaseXP:     solve.BaseXP,
		Multiplier: solve.Multiplier,
	})
	if err != nil {
		return AwardOutcome{}, err
	}

	if err := s.touchStreak(ctx, tx, sub.PlayerID, at); err != nil {
		return AwardOutcome{}, err
	}

	for i := range board {
		if board[i].ID == participant.ID {
			board[i] = *participant
		}
	}
	scoring.SortStandings(board)
	newRank := rankIn(board, participant.ID)

	out := AwardOutcome{Credited: true, Points: points, Solve: &solve, Grant: &grant}
	out.Events = append(out.Events, model.NewEvent(model.EventProblemSolved, model.ProblemSolvedPayload{
		PlayerID:  sub.PlayerID,
		ProblemID: sub.ProblemID,
		ContestID: sub.ContestID,
		Points:    points,
	}))
	if oldRank != newRank {
		out.Events = append(out.Events, model.NewEvent(model.EventPlayerRankChanged, model.RankChangedPayload{
			PlayerID:  sub.PlayerID,
			ContestID: contestID,
			OldRank:   oldRank,
			NewRank:   newRank,
		}))
	}
	out.Events = append(out.Events, grant.Events...)
	out.Events = append(out.Events, model.NewEvent(model.EventLeaderboardUpdated, model.LeaderboardUpdatedPayload{ContestID: contestID}))
	return out, nil
}

func (s *AwardService) skip(ctx context.Context, reason SkipReason, points int) AwardOutcome {
	s.tel.Metrics.RecordAwardSkipped(ctx, string(reason))
	return AwardOutcome{Skip: reason, Points: points}
}

func (s *AwardService) touchStreak(ctx context.Context, tx *sql.Tx, playerID string, at time.Time) error {
	player, err := s.players.FindByID(ctx, tx, playerID)
	if err != nil {
		return err
	}
	next := scoring.NextStreak(player.StreakDays, player.LastActiveOn, at)
	if err := s.players.UpdateStreak(ctx, tx, playerID, next, scoring.Day(at)); err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return nil
}

// rankIn returns the 1-based position of participantID in an ordered board.
func rankIn(board []model.ContestParticipant, participantID string) int {
	for i := range board {
		if board[i].ID == participantID {
			return scoring.Rank(0, i)
		}
	}
	return 0
}
