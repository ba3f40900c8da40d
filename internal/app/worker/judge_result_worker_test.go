package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	pending  []model.JudgeResult
	requeued []model.JudgeResult
	dead     []model.JudgeResult
	// cycle puts requeued results back on pending, like the real list does.
	cycle   bool
	PopFunc func(ctx context.Context) (*model.JudgeResult, error)
}

func (f *fakeSource) PopResult(ctx context.Context) (*model.JudgeResult, error) {
	if f.PopFunc != nil {
		return f.PopFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		time.Sleep(time.Millisecond) // stands in for the blocking pop timeout
		return nil, nil
	}
	res := f.pending[0]
	f.pending = f.pending[1:]
	return &res, nil
}

func (f *fakeSource) Requeue(_ context.Context, res model.JudgeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, res)
	if f.cycle {
		f.pending = append(f.pending, res)
	}
	return nil
}

func (f *fakeSource) DeadLetter(_ context.Context, res model.JudgeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, res)
	return nil
}

type fakeLock struct{ released *int }

func (l fakeLock) Release(context.Context) (bool, error) {
	*l.released++
	return true, nil
}

type fakeLocker struct {
	AcquireFunc func(ctx context.Context, name string) (Lock, error)
	released    int
}

func (f *fakeLocker) Acquire(ctx context.Context, name string) (Lock, error) {
	if f.AcquireFunc != nil {
		return f.AcquireFunc(ctx, name)
	}
	return fakeLock{&f.released}, nil
}

type fakeHandler struct {
	mu         sync.Mutex
	handled    []string
	HandleFunc func(ctx context.Context, res model.JudgeResult) (*service.JudgeOutcome, error)
}

func (f *fakeHandler) HandleJudgeResult(ctx context.Context, res model.JudgeResult) (*service.JudgeOutcome, error) {
	f.mu.Lock()
	f.handled = append(f.handled, res.SubmissionID)
	f.mu.Unlock()
	if f.HandleFunc != nil {
		return f.HandleFunc(ctx, res)
	}
	return &service.JudgeOutcome{SubmissionID: res.SubmissionID, Verdict: res.Verdict}, nil
}

func newTestWorker(src *fakeSource, locker *fakeLocker, handler *fakeHandler) *JudgeResultWorker {
	w := NewJudgeResultWorker(src, locker, handler, slog.New(slog.NewTextHandler(io.Discard, nil)), WithMaxAttempts(3))
	w.errorBackoff = time.Millisecond
	w.retryBackoff = time.Millisecond
	w.maxBackoff = 4 * time.Millisecond
	return w
}

func TestProcess(t *testing.T) {
	res := model.JudgeResult{SubmissionID: "sub-1", Verdict: "ACCEPTED"}
	tests := []struct {
		name         string
		attempts     int
		acquireErr   error
		handleErr    error
		wantHandled  bool
		wantRequeued []model.JudgeResult
		wantDead     []model.JudgeResult
		wantReleased int
	}{
		{name: "applied", wantHandled: true, wantReleased: 1},
		{name: "lock held elsewhere", acquireErr: fmt.Errorf("lock: %w", common.ErrLockNotAcquired), wantRequeued: []model.JudgeResult{res}},
		{name: "redis error on lock", acquireErr: errors.New("connection refused"), wantRequeued: []model.JudgeResult{res}},
		{name: "invalid result dropped", handleErr: common.ErrValidation, wantHandled: true, wantReleased: 1},
		{name: "unknown submission dropped", handleErr: common.ErrNotFound, wantHandled: true, wantReleased: 1},
		{name: "credit conflict dropped", handleErr: fmt.Errorf("apply verdict: %w", common.ErrConflict), wantHandled: true, wantReleased: 1},
		{
			name: "transient failure requeued with attempt", handleErr: errors.New("db down"), wantHandled: true, wantReleased: 1,
			wantRequeued: []model.JudgeResult{{SubmissionID: "sub-1", Verdict: "ACCEPTED", Attempts: 1}},
		},
		{
			name: "last attempt dead-lettered", attempts: 2, handleErr: errors.New("db down"), wantHandled: true, wantReleased: 1,
			wantDead: []model.JudgeResult{{SubmissionID: "sub-1", Verdict: "ACCEPTED", Attempts: 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			locker := &fakeLocker{}
			if tt.acquireErr != nil {
				locker.AcquireFunc = func(context.Context, string) (Lock, error) { return nil, tt.acquireErr }
			}
			handler := &fakeHandler{}
			if tt.handleErr != nil {
				handler.HandleFunc = func(context.Context, model.JudgeResult) (*service.JudgeOutcome, error) {
					return nil, tt.handleErr
				}
			}

			in := res
			in.Attempts = tt.attempts
			newTestWorker(src, locker, handler).process(context.Background(), in)

			assert.Equal(t, tt.wantHandled, len(handler.handled) == 1)
			assert.Equal(t, tt.wantRequeued, src.requeued)
			assert.Equal(t, tt.wantDead, src.dead)
			assert.Equal(t, tt.wantReleased, locker.released)
		})
	}
}

func TestStart_DrainsUntilCancelled(t *testing.T) {
	src := &fakeSource{pending: []model.JudgeResult{
		{SubmissionID: "a", Verdict: "ACCEPTED"},
		{SubmissionID: "b", Verdict: "WRONG_ANSWER"},
	}}
	handler := &fakeHandler{}
	w := newTestWorker(src, &fakeLocker{}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.handled) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, []string{"a", "b"}, handler.handled)
}

func TestStart_BacksOffOnPopError(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{PopFunc: func(context.Context) (*model.JudgeResult, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil, errors.New("redis unavailable")
	}}
	w := newTestWorker(src, &fakeLocker{}, &fakeHandler{})

	w.Start(ctx)
	assert.Equal(t, 3, calls)
}

func TestStart_PoisonResultIsBounded(t *testing.T) {
	src := &fakeSource{cycle: true, pending: []model.JudgeResult{{SubmissionID: "poison", Verdict: "ACCEPTED"}}}
	handler := &fakeHandler{HandleFunc: func(context.Context, model.JudgeResult) (*service.JudgeOutcome, error) {
		return nil, errors.New("connection reset")
	}}
	w := newTestWorker(src, &fakeLocker{}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.dead) == 1
	}, 2*time.Second, 5*time.Millisecond)
	// give a runaway loop time to show itself
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Len(t, handler.handled, 3)
	assert.Equal(t, 3, src.dead[0].Attempts)
}

func TestBackoff(t *testing.T) {
	w := NewJudgeResultWorker(&fakeSource{}, &fakeLocker{}, &fakeHandler{}, nil)
	assert.Equal(t, 500*time.Millisecond, w.backoff(1))
	assert.Equal(t, time.Second, w.backoff(2))
	assert.Equal(t, 4*time.Second, w.backoff(4))
	assert.Equal(t, 30*time.Second, w.backoff(20))
}
