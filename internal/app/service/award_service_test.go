package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoring_PrecisionEasyWithOneWrongAttempt(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)
	c := h.contest(easy)
	p := h.player()
	h.join(c.ID, p, model.ModePrecision)
	h.status(c.ID, model.ContestLive)

	_, wrong := h.submit(p, easy, &c.ID, model.VerdictWrongAnswer)
	assert.False(t, wrong.Credited)
	assert.Equal(t, 0, wrong.PointsEarned)

	sub, out := h.submit(p, easy, &c.ID, model.VerdictAccepted)
	assert.Equal(t, 1, sub.WrongAttempts)
	require.True(t, out.Credited)
	assert.Equal(t, 100, out.PointsEarned)
	assert.Equal(t, 75, out.XPGranted)

	cp := h.participant(c.ID, p)
	assert.Equal(t, 100, cp.RawScore)
	assert.Equal(t, 10, cp.PenaltyMins)
	assert.Equal(t, 80, cp.AccuracyScore)
	assert.Equal(t, 37.5, cp.XPScore)
	assert.InDelta(t, 78.625, cp.FinalRating, 1e-9)
	assert.Equal(t, 1, cp.ProblemsSolved)
	assert.NotNil(t, cp.LastSolvedAt)

	player := h.playerRow(p)
	assert.Equal(t, 50+75, player.XP)
	assert.Equal(t, 2, player.Level)
	assert.Equal(t, 1, player.StreakDays)
}

func TestScoring_GrinderHardClean(t *testing.T) {
	h := newHarness(t)
	hard := h.problem(model.DifficultyHard)
	c := h.contest(hard)
	p := h.player()
	h.join(c.ID, p, model.ModeGrinder)
	h.status(c.ID, model.ContestLive)
	h.notifier.reset()

	_, out := h.submit(p, hard, &c.ID, model.VerdictAccepted)
	require.True(t, out.Credited)
	assert.Equal(t, 330, out.XPGranted)

	cp := h.participant(c.ID, p)
	assert.Equal(t, 400, cp.RawScore)
	assert.Equal(t, 400, cp.AccuracyScore)
	assert.Equal(t, 165.0, cp.XPScore)
	assert.InDelta(t, 353.0, cp.FinalRating, 1e-9)

	// 50 join + 330 solve crosses into level 3
	assert.Equal(t, 380, h.playerRow(p).XP)
	assert.Contains(t, h.notifier.types(), model.EventProblemSolved)
	assert.Contains(t, h.notifier.types(), model.EventPlayerLevelUp)
	assert.Contains(t, h.notifier.types(), model.EventLeaderboardUpdated)
}

func TestScoring_PendingAttemptCountsAsWrong(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)
	c := h.contest(easy)
	p := h.player()
	h.join(c.ID, p, model.ModePrecision)
	h.status(c.ID, model.ContestLive)

	create := func() *model.Submission {
		sub, err := h.submissions.CreateSubmission(h.ctx, p, CreateSubmissionRequest{ProblemID: easy.ID, ContestID: &c.ID, Language: "go", Code: "x"})
		require.NoError(t, err)
		return sub
	}
	first, second := create(), create()
	assert.Equal(t, 0, first.WrongAttempts)
	assert.Equal(t, 1, second.WrongAttempts, "the first submission was still pending")

	_, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: first.ID, Verdict: string(model.VerdictWrongAnswer)})
	require.NoError(t, err)
	out, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: second.ID, Verdict: string(model.VerdictAccepted)})
	require.NoError(t, err)
	require.True(t, out.Credited)

	cp := h.participant(c.ID, p)
	assert.Equal(t, 10, cp.PenaltyMins)
	assert.Equal(t, 80, cp.AccuracyScore)
	assert.InDelta(t, 78.625, cp.FinalRating, 1e-9)
}

func TestAward_DoubleAcceptedCreditsOnce(t *testing.T) {
	h := newHarness(t)
	medium := h.problem(model.DifficultyMedium)
	c := h.contest(medium)
	p := h.player()
	h.join(c.ID, p, model.ModeLegend)
	h.status(c.ID, model.ContestLive)

	// both submissions are pending before either is judged
	req := CreateSubmissionRequest{ProblemID: medium.ID, ContestID: &c.ID, Language: "go", Code: "x"}
	first, err := h.submissions.CreateSubmission(h.ctx, p, req)
	require.NoError(t, err)
	second, err := h.submissions.CreateSubmission(h.ctx, p, req)
	require.NoError(t, err)

	out1, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: first.ID, Verdict: "ACCEPTED"})
	require.NoError(t, err)
	out2, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: second.ID, Verdict: "accepted"})
	require.NoError(t, err)

	assert.True(t, out1.Credited)
	assert.Equal(t, 200, out1.PointsEarned)
	assert.False(t, out2.Credited)
	assert.Equal(t, SkipAlreadyCredited, out2.SkipReason)
	assert.Equal(t, 0, out2.PointsEarned)

	stored, err := h.store.Submissions().FindByID(h.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAccepted, stored.Verdict)
	assert.False(t, stored.Credited)

	cp := h.participant(c.ID, p)
	assert.Equal(t, 1, cp.ProblemsSolved)
	assert.Equal(t, 200, cp.RawScore)
	assert.Equal(t, 50+225, h.playerRow(p).XP)
	assert.Equal(t, []string{string(SkipAlreadyCredited)}, h.metrics.skips)
}

func TestAward_SkipReasons(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)

	t.Run("practice solve keeps points but scores nothing", func(t *testing.T) {
		p := h.player()
		_, out := h.submit(p, easy, nil, model.VerdictAccepted)
		assert.False(t, out.Credited)
		assert.Equal(t, SkipNoContest, out.SkipReason)
		assert.Equal(t, 100, out.PointsEarned)
		assert.Equal(t, 0, h.playerRow(p).XP)
	})

	t.Run("contest no longer live", func(t *testing.T) {
		c := h.contest(easy)
		p := h.player()
		h.join(c.ID, p, model.ModeGrinder)
		h.status(c.ID, model.ContestLive)

		sub, err := h.submissions.CreateSubmission(h.ctx, p, CreateSubmissionRequest{ProblemID: easy.ID, ContestID: &c.ID, Language: "go", Code: "x"})
		require.NoError(t, err)
		h.status(c.ID, model.ContestEnded)

		out, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: sub.ID, Verdict: "ACCEPTED"})
		require.NoError(t, err)
		assert.Equal(t, SkipContestNotLive, out.SkipReason)
		assert.False(t, out.Credited)
		assert.Equal(t, 0, out.PointsEarned)
		cp := h.participant(c.ID, p)
		assert.Equal(t, 0, cp.RawScore)
		require.NotNil(t, cp.FinalRank)
		assert.Equal(t, 1, *cp.FinalRank, "final rank stays as finalized")
	})
}

func TestAward_CreditSolveTxNotParticipant(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)
	c := h.contest(easy)
	h.status(c.ID, model.ContestLive)
	outsider := h.player()

	sub := &model.Submission{ID: "s1", PlayerID: outsider, ProblemID: easy.ID, ContestID: &c.ID, Verdict: model.VerdictAccepted}
	out, err := h.award.CreditSolveTx(h.ctx, nil, sub, easy, h.contests.now())
	require.NoError(t, err)
	assert.False(t, out.Credited)
	assert.Equal(t, SkipNotParticipant, out.Skip)
	assert.Empty(t, out.Events)
}

func TestAward_RankChangedEvent(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)
	hard := h.problem(model.DifficultyHard)
	c := h.contest(easy, hard)
	a, b := h.player(), h.player()
	h.join(c.ID, a, model.ModeGrinder)
	h.join(c.ID, b, model.ModeGrinder)
	h.status(c.ID, model.ContestLive)

	h.submit(a, easy, &c.ID, model.VerdictAccepted)
	h.notifier.reset()
	h.submit(b, hard, &c.ID, model.VerdictAccepted)

	var moved *model.RankChangedPayload
	for _, e := range h.notifier.events {
		if e.Type == model.EventPlayerRankChanged {
			p := e.Payload.(model.RankChangedPayload)
			moved = &p
		}
	}
	require.NotNil(t, moved)
	assert.Equal(t, b, moved.PlayerID)
	assert.Equal(t, 2, moved.OldRank)
	assert.Equal(t, 1, moved.NewRank)
}

type sharedLockContests struct {
	repository.ContestRepository
	mu     sync.Mutex
	shared []string
}

func (c *sharedLockContests) LockByIDShared(ctx context.Context, tx *sql.Tx, id string) (*model.Contest, error) {
	c.mu.Lock()
	c.shared = append(c.shared, id)
	c.mu.Unlock()
	return c.ContestRepository.LockByIDShared(ctx, tx, id)
}

func TestAward_CreditHoldsSharedContestLock(t *testing.T) {
	h := newHarness(t)
	easy := h.problem(model.DifficultyEasy)
	c := h.contest(easy)
	p := h.player()
	h.join(c.ID, p, model.ModeGrinder)
	h.status(c.ID, model.ContestLive)

	contests := &sharedLockContests{ContestRepository: h.store.Contests()}
	award := NewAwardService(contests, h.store.Participants(), h.store.Submissions(), h.store.Players(), h.ledger, h.rules, Telemetry{})
	judge := NewJudgeService(h.store.Submissions(), h.store.Problems(), award, h.store, nil, Telemetry{})

	sub, err := h.submissions.CreateSubmission(h.ctx, p, CreateSubmissionRequest{ProblemID: easy.ID, ContestID: &c.ID, Language: "go", Code: "x"})
	require.NoError(t, err)
	out, err := judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: sub.ID, Verdict: "ACCEPTED"})
	require.NoError(t, err)
	require.True(t, out.Credited)
	assert.Equal(t, []string{c.ID}, contests.shared)
}

func TestAward_ConcurrentAcceptancesCreditOnce(t *testing.T) {
	h := newHarness(t)
	medium := h.problem(model.DifficultyMedium)
	c := h.contest(medium)
	p := h.player()
	h.join(c.ID, p, model.ModeGrinder)
	h.status(c.ID, model.ContestLive)

	const workers = 8
	subs := make([]*model.Submission, workers)
	for i := range subs {
		sub, err := h.submissions.CreateSubmission(h.ctx, p, CreateSubmissionRequest{ProblemID: medium.ID, ContestID: &c.ID, Language: "go", Code: "x"})
		require.NoError(t, err)
		subs[i] = sub
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
		errs     []error
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: id, Verdict: "ACCEPTED"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if out.Credited {
				credited++
			}
		}(sub.ID)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, credited)
	cp := h.participant(c.ID, p)
	assert.Equal(t, 1, cp.ProblemsSolved)
	assert.Equal(t, 200, cp.RawScore)
	// join 50 + medium 150*1.1
	assert.Equal(t, 50+165, h.playerRow(p).XP)

	report, err := h.ledger.Reconcile(h.ctx, p)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

type failingXPPlayers struct {
	repository.PlayerRepository
	err error
}

func (f failingXPPlayers) AddXP(context.Context, *sql.Tx, string, int) (int, error) {
	return 0, f.err
}

func TestAward_GrantFailureRollsBackScores(t *testing.T) {
	h := newHarness(t)
	hard := h.problem(model.DifficultyHard)
	c := h.contest(hard)
	p := h.player()
	h.join(c.ID, p, model.ModeLegend)
	h.status(c.ID, model.ContestLive)
	before := h.playerRow(p)

	diskFull := errors.New("disk full")
	players := failingXPPlayers{PlayerRepository: h.store.Players(), err: diskFull}
	ledger := NewXPLedgerService(players, h.store.Ledger(), h.store, h.rules, nil, Telemetry{})
	award := NewAwardService(h.store.Contests(), h.store.Participants(), h.store.Submissions(), players, ledger, h.rules, Telemetry{})
	judge := NewJudgeService(h.store.Submissions(), h.store.Problems(), award, h.store, nil, Telemetry{})

	sub, err := h.submissions.CreateSubmission(h.ctx, p, CreateSubmissionRequest{ProblemID: hard.ID, ContestID: &c.ID, Language: "go", Code: "x"})
	require.NoError(t, err)
	_, err = judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: sub.ID, Verdict: "ACCEPTED"})
	require.ErrorIs(t, err, diskFull)

	cp := h.participant(c.ID, p)
	assert.Equal(t, 0, cp.RawScore)
	assert.Equal(t, 0, cp.ProblemsSolved)
	assert.Zero(t, cp.FinalRating)
	assert.Nil(t, cp.LastSolvedAt)

	after := h.playerRow(p)
	assert.Equal(t, before.XP, after.XP)
	assert.Equal(t, before.StreakDays, after.StreakDays)

	history, err := h.ledger.History(h.ctx, p, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total, "only the join grant remains")

	stored, err := h.store.Submissions().FindByID(h.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictPending, stored.Verdict)

	// the same verdict applies cleanly once the store recovers
	out, err := h.judge.HandleJudgeResult(h.ctx, model.JudgeResult{SubmissionID: sub.ID, Verdict: "ACCEPTED"})
	require.NoError(t, err)
	assert.True(t, out.Credited)
}
