package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository/memory"
	"tle_arena/internal/domain/scoring"
	"tle_arena/internal/platform/telemetry"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recordingNotifier) Notify(_ context.Context, events ...model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *recordingNotifier) types() []model.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type recordingMetrics struct {
	telemetry.NoOpMetrics
	mu    sync.Mutex
	skips []string
}

func (m *recordingMetrics) RecordAwardSkipped(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips = append(m.skips, reason)
}

type fakeDispatcher struct {
	EnqueueFunc func(ctx context.Context, req model.JudgeRequest) error
	mu          sync.Mutex
	requests    []model.JudgeRequest
}

func (f *fakeDispatcher) EnqueueRequest(ctx context.Context, req model.JudgeRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.EnqueueFunc != nil {
		return f.EnqueueFunc(ctx, req)
	}
	return nil
}

// harness wires every service to one in-memory store.
type harness struct {
	t          *testing.T
	ctx        context.Context
	store      *memory.Store
	rules      scoring.Rules
	notifier   *recordingNotifier
	metrics    *recordingMetrics
	dispatcher *fakeDispatcher

	ledger      *XPLedgerService
	award       *AwardService
	judge       *JudgeService
	contests    *ContestService
	submissions *SubmissionService
	leaderboard *LeaderboardService
	players     *PlayerService
	problems    *ProblemService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	rules := scoring.DefaultRules()
	notifier := &recordingNotifier{}
	metrics := &recordingMetrics{}
	tel := Telemetry{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics,
		Tracer:  noop.NewTracerProvider().Tracer("test"),
	}
	dispatcher := &fakeDispatcher{}

	ledger := NewXPLedgerService(store.Players(), store.Ledger(), store, rules, notifier, tel)
	award := NewAwardService(store.Contests(), store.Participants(), store.Submissions(), store.Players(), ledger, rules, tel)
	return &harness{
		t:           t,
		ctx:         context.Background(),
		store:       store,
		rules:       rules,
		notifier:    notifier,
		metrics:     metrics,
		dispatcher:  dispatcher,
		ledger:      ledger,
		award:       award,
		judge:       NewJudgeService(store.Submissions(), store.Problems(), award, store, notifier, tel),
		contests:    NewContestService(store.Contests(), store.Participants(), store.Players(), store.Problems(), ledger, store, rules, notifier, tel),
		submissions: NewSubmissionService(store.Submissions(), store.Problems(), store.Contests(), store.Participants(), dispatcher, store, tel),
		leaderboard: NewLeaderboardService(store.Contests(), store.Participants(), store.Players(), tel),
		players:     NewPlayerService(store.Players(), store.Participants(), store.Submissions(), store.Ledger(), rules, tel),
		problems:    NewProblemService(store.Problems(), rules),
	}
}

func (h *harness) player() string {
	h.t.Helper()
	userID, playerID := uuid.NewString(), uuid.NewString()
	require.NoError(h.t, h.store.Users().Create(h.ctx, nil, &model.User{
		ID:    userID,
		Name:  gofakeit.Name(),
		Email: playerID + "@" + gofakeit.DomainName(),
		Role:  model.RolePlayer,
	}))
	start := h.rules.Levels.LevelFor(0)
	require.NoError(h.t, h.store.Players().Create(h.ctx, nil, &model.Player{
		ID:            playerID,
		UserID:        userID,
		Level:         start.Level,
		Tier:          start.Tier,
		SubRank:       start.SubRank,
		PreferredMode: model.DefaultMode,
		Status:        model.PlayerStatusActive,
	}))
	return playerID
}

func (h *harness) problem(d model.Difficulty) *model.Problem {
	h.t.Helper()
	p, err := h.problems.CreateProblem(h.ctx, "author", CreateProblemRequest{
		Title:       gofakeit.Sentence(3),
		Description: gofakeit.Paragraph(1, 2, 8, " "),
		Difficulty:  string(d),
	})
	require.NoError(h.t, err)
	return p
}

// contest creates a public contest over problems and opens it for joining.
func (h *harness) contest(problems ...*model.Problem) *model.Contest {
	h.t.Helper()
	ids := make([]string, len(problems))
	for i, p := range problems {
		ids[i] = p.ID
	}
	c, err := h.contests.CreateContest(h.ctx, "organizer", CreateContestRequest{
		Title:      gofakeit.Sentence(2),
		ProblemIDs: ids,
	})
	require.NoError(h.t, err)
	h.status(c.ID, model.ContestUpcoming)
	return c
}

func (h *harness) status(contestID string, s model.ContestStatus) *StatusChange {
	h.t.Helper()
	change, err := h.contests.ChangeStatus(h.ctx, "", model.RoleAdmin, contestID, string(s))
	require.NoError(h.t, err)
	return change
}

func (h *harness) join(contestID, playerID string, mode model.Mode) *model.ContestParticipant {
	h.t.Helper()
	p, err := h.contests.JoinContest(h.ctx, playerID, contestID, JoinContestRequest{Mode: string(mode)})
	require.NoError(h.t, err)
	return p
}

// submit creates a submission and applies verdict to it.
func (h *harness) submit(playerID string, problem *model.Problem, contestID *string, verdict model.Verdict) (*model.Submission, *JudgeOutcome) {
	h.t.Helper()
	sub, err := h.submissions.CreateSubmission(h.ctx, playerID, CreateSubmissionRequest{
		ProblemID: problem.ID,
		ContestID: contestID,
		Language:  "go",
		Code:      "package main",
	})
	require.NoError(h.t, err)
	out, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: sub.ID, Verdict: string(verdict)})
	require.NoError(h.t, err)
	return sub, out
}

func (h *harness) participant(contestID, playerID string) *model.ContestParticipant {
	h.t.Helper()
	p, err := h.store.Participants().Find(h.ctx, nil, contestID, playerID)
	require.NoError(h.t, err)
	return p
}

func (h *harness) playerRow(playerID string) *model.Player {
	h.t.Helper()
	p, err := h.store.Players().FindByID(h.ctx, nil, playerID)
	require.NoError(h.t, err)
	return p
}

func ptr[T any](v T) *T { return &v }
