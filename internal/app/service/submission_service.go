package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/google/uuid"
)

// JudgeDispatcher hands new submissions to the external judge.
type JudgeDispatcher interface {
	EnqueueRequest(ctx context.Context, req model.JudgeRequest) error
}

type SubmissionService struct {
	submissionRepo  repository.SubmissionRepository
	problemRepo     repository.ProblemRepository
	contestRepo     repository.ContestRepository
	participantRepo repository.ParticipantRepository
	judge           JudgeDispatcher
	tx              repository.Transactor
	tel             Telemetry
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	participantRepo repository.ParticipantRepository,
	judge JudgeDispatcher,
	tx repository.Transactor,
	tel Telemetry,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo:  subRepo,
		problemRepo:     probRepo,
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		judge:           judge,
		tx:              tx,
		tel:             tel.withDefaults(),
	}
}

type CreateSubmissionRequest struct {
	ProblemID string  `json:"problem_id"`
	ContestID *string `json:"contest_id,omitempty"`
	Language  string  `json:"language"`
	Code      string  `json:"code"`
}

// CreateSubmission stores a PENDING submission with its wrong-attempt count
// frozen, then announces it to the judge.
func (s *SubmissionService) CreateSubmission(ctx context.Context, playerID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if playerID == "" {
		return nil, common.Errorf("only players can submit: %w", common.ErrForbidden)
	}
	req.Language = strings.TrimSpace(req.Language)
	if req.ProblemID == "" || req.Language == "" || strings.TrimSpace(req.Code) == "" {
		return nil, common.Errorf("problem_id, language and code are required: %w", common.ErrBadRequest)
	}
	if req.ContestID != nil && *req.ContestID == "" {
		req.ContestID = nil
	}

	return withTelemetry(s.tel, ctx, "SubmissionService", "CreateSubmission", playerID, func(ctx context.Context) (*model.Submission, error) {
		problem, err := s.problemRepo.FindByID(ctx, nil, req.ProblemID)
		if err != nil {
			return nil, common.Errorf("problem not found: %w", err)
		}

		if req.ContestID != nil {
			if err := s.checkContestEntry(ctx, playerID, problem.ID, *req.ContestID); err != nil {
				return nil, err
			}
		}

		submission := &model.Submission{
			ID:          uuid.NewString(),
			PlayerID:    playerID,
			ProblemID:   problem.ID,
			ContestID:   req.ContestID,
			Language:    req.Language,
			Code:        req.Code,
			Verdict:     model.VerdictPending,
			SubmittedAt: time.Now().UTC(),
		}

		err = s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			wrong, err := s.submissionRepo.CountPriorFailures(ctx, tx, playerID, problem.ID, req.ContestID)
			if err != nil {
				return err
			}
			submission.WrongAttempts = wrong
			return s.submissionRepo.Create(ctx, tx, submission)
		})
		if err != nil {
			return nil, common.Errorf("failed to create submission: %w", err)
		}

		judgeReq := model.JudgeRequest{
			SubmissionID:  submission.ID,
			ProblemID:     problem.ID,
			Language:      submission.Language,
			Code:          submission.Code,
			TimeLimitMs:   problem.TimeLimitMs,
			MemoryLimitMb: problem.MemoryLimitMb,
		}
		if err := s.judge.EnqueueRequest(ctx, judgeReq); err != nil {
			// The submission stays PENDING and can be re-announced; the caller still gets it.
			s.tel.Logger.ErrorContext(ctx, "Failed to enqueue judge request",
				"submission_id", submission.ID,
				"error", err,
			)
		}
		return submission, nil
	})
}

func (s *SubmissionService) checkContestEntry(ctx context.Context, playerID, problemID, contestID string) error {
	contest, err := s.contestRepo.FindByID(ctx, nil, contestID)
	if err != nil {
		return common.Errorf("contest not found: %w", err)
	}
	if !scoring.AcceptsSubmissions(contest.Status) {
		return common.Errorf("contest is %s, submissions are closed: %w", contest.Status, common.ErrValidation)
	}
	if !contest.HasProblem(problemID) {
		return common.Errorf("problem is not part of this contest: %w", common.ErrValidation)
	}
	if _, err := s.participantRepo.Find(ctx, nil, contestID, playerID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf("join the contest before submitting: %w", common.ErrForbidden)
		}
		return err
	}
	return nil
}

// GetSubmission returns a submission to its owner or an admin.
func (s *SubmissionService) GetSubmission(ctx context.Context, playerID, role, submissionID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.PlayerID != playerID && role != model.RoleAdmin {
		return nil, common.ErrNotFound
	}
	return sub, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, playerID, problemID string, page, limit int) (*common.Page[model.Submission], error) {
	subs, total, err := s.submissionRepo.ListByPlayer(ctx, playerID, problemID, limit, scoring.Offset(page, limit))
	if err != nil {
		return nil, err
	}
	return &common.Page[model.Submission]{Items: subs, Total: total, Page: page, Limit: limit}, nil
}
