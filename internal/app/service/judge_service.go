package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
)

const judgeServiceName = "JudgeService"

// JudgeOutcome reports what a judge result did to its submission.
type JudgeOutcome struct {
	SubmissionID  string     `json:"submission_id"`
	Verdict       string     `json:"verdict"`
	AlreadyJudged bool       `json:"already_judged"`
	Credited      bool       `json:"credited"`
	SkipReason    SkipReason `json:"skip_reason,omitempty"`
	PointsEarned  int        `json:"points_earned"`
	XPGranted     int        `json:"xp_granted"`
}

// JudgeService applies verdicts from the external judge. Each verdict is one
// transaction: the submission row lock makes a redelivered verdict a no-op.
type JudgeService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	award       *AwardService
	tx          repository.Transactor
	notifier    Notifier
	tel         Telemetry
	now         func() time.Time
}

func NewJudgeService(
	submissions repository.SubmissionRepository,
	problems repository.ProblemRepository,
	award *AwardService,
	tx repository.Transactor,
	notifier Notifier,
	tel Telemetry,
) *JudgeService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &JudgeService{
		submissions: submissions,
		problems:    problems,
		award:       award,
		tx:          tx,
		notifier:    notifier,
		tel:         tel.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *JudgeService) HandleJudgeResult(ctx context.Context, res model.JudgeResult) (*JudgeOutcome, error) {
	verdict, ok := model.ParseVerdict(res.Verdict)
	if res.SubmissionID == "" || !ok {
		return nil, fmt.Errorf("invalid judge result (submission %q, verdict %q): %w", res.SubmissionID, res.Verdict, common.ErrValidation)
	}
	if (res.RuntimeMs != nil && *res.RuntimeMs < 0) || (res.MemoryMb != nil && *res.MemoryMb < 0) {
		return nil, fmt.Errorf("negative runtime or memory in judge result: %w", common.ErrValidation)
	}

	var events []model.Event
	outcome, err := withTelemetry(s.tel, ctx, judgeServiceName, "HandleJudgeResult", res.SubmissionID, func(ctx context.Context) (*JudgeOutcome, error) {
		out := &JudgeOutcome{SubmissionID: res.SubmissionID, Verdict: string(verdict)}
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			events = nil
			sub, err := s.submissions.FindForUpdate(ctx, tx, res.SubmissionID)
			if err != nil {
				return fmt.Errorf("submission %s: %w", res.SubmissionID, err)
			}
			if sub.Verdict != model.VerdictPending {
				out.AlreadyJudged = true
				out.Verdict = string(sub.Verdict)
				out.Credited = sub.Credited
				out.PointsEarned = sub.PointsEarned
				return nil
			}

			now := s.now()
			sub.Verdict = verdict
			sub.RuntimeMs = res.RuntimeMs
			sub.MemoryMb = res.MemoryMb
			sub.JudgedAt = &now
			sub.PointsEarned = 0

			if verdict == model.VerdictAccepted {
				problem, err := s.problems.FindByID(ctx, tx, sub.ProblemID)
				if err != nil {
					return fmt.Errorf("problem %s: %w", sub.ProblemID, err)
				}
				award, err := s.award.CreditSolveTx(ctx, tx, sub, problem, now)
				if err != nil {
					return err
				}
				sub.PointsEarned = award.Points
				sub.Credited = award.Credited
				out.Credited = award.Credited
				out.SkipReason = award.Skip
				if award.Grant != nil {
					out.XPGranted = award.Grant.Entry.FinalXP
				}
				events = award.Events
				if award.Skip == SkipNoContest {
					events = append(events, model.NewEvent(model.EventProblemSolved, model.ProblemSolvedPayload{
						PlayerID:  sub.PlayerID,
						ProblemID: sub.ProblemID,
						Points:    award.Points,
					}))
				}
			}
			out.PointsEarned = sub.PointsEarned

			if err := s.submissions.ApplyVerdict(ctx, tx, sub); err != nil {
				return fmt.Errorf("apply verdict: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.SkipReason != "" && outcome.SkipReason != SkipNoContest {
		s.tel.Logger.InfoContext(ctx, "Accepted submission not credited",
			"submission_id", outcome.SubmissionID,
			"reason", outcome.SkipReason,
		)
	}
	s.notifier.Notify(ctx, events...)
	return outcome, nil
}
