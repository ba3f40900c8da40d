package service

import (
	"context"
	"errors"
	"strings"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	defaultTimeLimitMs   = 2000
	defaultMemoryLimitMb = 256
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	rules       scoring.Rules
}

func NewProblemService(problemRepo repository.ProblemRepository, rules scoring.Rules) *ProblemService {
	return &ProblemService{problemRepo: problemRepo, rules: rules}
}

type CreateProblemRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Difficulty    string   `json:"difficulty"`
	Points        int      `json:"points"`
	Tags          []string `json:"tags"`
	TimeLimitMs   int      `json:"time_limit_ms"`
	MemoryLimitMb int      `json:"memory_limit_mb"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req CreateProblemRequest) (*model.Problem, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Description == "" || req.Difficulty == "" {
		return nil, common.Errorf("missing required fields for problem creation: %w", common.ErrBadRequest)
	}
	difficulty, ok := model.ParseDifficulty(req.Difficulty)
	if !ok {
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}
	if req.Points < 0 || req.TimeLimitMs < 0 || req.MemoryLimitMb < 0 {
		return nil, common.Errorf("points and limits must not be negative: %w", common.ErrValidation)
	}

	problem := &model.Problem{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Slug:          slug.Make(req.Title),
		Description:   req.Description,
		Difficulty:    difficulty,
		Points:        req.Points,
		Tags:          normalizeTags(req.Tags),
		TimeLimitMs:   req.TimeLimitMs,
		MemoryLimitMb: req.MemoryLimitMb,
		CreatedBy:     &userID,
	}
	if problem.Points == 0 {
		problem.Points = s.rules.PointsFor(problem)
	}
	if problem.TimeLimitMs == 0 {
		problem.TimeLimitMs = defaultTimeLimitMs
	}
	if problem.MemoryLimitMb == 0 {
		problem.MemoryLimitMb = defaultMemoryLimitMb
	}

	if _, err := s.problemRepo.FindBySlug(ctx, problem.Slug); err == nil {
		problem.Slug += "-" + uuid.NewString()[:6]
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if err := s.problemRepo.Create(ctx, nil, problem); err != nil {
		return nil, common.Errorf("failed to create problem: %w", err)
	}
	return problem, nil
}

func (s *ProblemService) GetProblem(ctx context.Context, problemSlug string) (*model.Problem, error) {
	return s.problemRepo.FindBySlug(ctx, problemSlug)
}

func (s *ProblemService) ListProblems(ctx context.Context, page, limit int, difficulty string, tags []string, search string) (*common.Page[model.Problem], error) {
	var d model.Difficulty
	if difficulty != "" {
		parsed, ok := model.ParseDifficulty(difficulty)
		if !ok {
			return nil, common.Errorf("unknown difficulty %q: %w", difficulty, common.ErrValidation)
		}
		d = parsed
	}
	problems, total, err := s.problemRepo.List(ctx, limit, scoring.Offset(page, limit), d, normalizeTags(tags), strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	return &common.Page[model.Problem]{Items: problems, Total: total, Page: page, Limit: limit}, nil
}

// normalizeTags slugs and dedupes tag names.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = slug.Make(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
