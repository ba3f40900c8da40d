package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/platform/queue"
)

// ResultSource is the queue the external judge pushes verdicts to.
type ResultSource interface {
	// PopResult blocks for a while and returns nil when nothing arrived.
	PopResult(ctx context.Context) (*model.JudgeResult, error)
	Requeue(ctx context.Context, res model.JudgeResult) error
	// DeadLetter parks a result that could not be applied after repeated tries.
	DeadLetter(ctx context.Context, res model.JudgeResult) error
}

type Lock interface {
	Release(ctx context.Context) (bool, error)
}

// Locker guards one submission at a time across worker processes.
type Locker interface {
	Acquire(ctx context.Context, name string) (Lock, error)
}

type ResultHandler interface {
	HandleJudgeResult(ctx context.Context, res model.JudgeResult) (*service.JudgeOutcome, error)
}

type redisLocker struct{ l *queue.Locker }

// NewRedisLocker adapts a queue.Locker to the worker's Locker.
func NewRedisLocker(l *queue.Locker) Locker { return redisLocker{l} }

func (r redisLocker) Acquire(ctx context.Context, name string) (Lock, error) {
	lock, err := r.l.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

const (
	DefaultMaxAttempts = 5

	defaultRetryBackoff = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

// JudgeResultWorker drains verdicts from the result queue and applies them.
// A result whose submission is locked elsewhere goes back on the queue after a
// short pause. A failed application is retried with exponential backoff and
// dead-lettered after maxAttempts tries. Bad input and conflicts are dropped.
type JudgeResultWorker struct {
	source       ResultSource
	locker       Locker
	handler      ResultHandler
	logger       *slog.Logger
	errorBackoff time.Duration
	retryBackoff time.Duration
	maxBackoff   time.Duration
	maxAttempts  int
}

type Option func(*JudgeResultWorker)

// WithMaxAttempts bounds how often one result is retried. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(w *JudgeResultWorker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func NewJudgeResultWorker(source ResultSource, locker Locker, handler ResultHandler, logger *slog.Logger, opts ...Option) *JudgeResultWorker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &JudgeResultWorker{
		source:       source,
		locker:       locker,
		handler:      handler,
		logger:       logger.With("component", "judge_result_worker"),
		errorBackoff: 5 * time.Second,
		retryBackoff: defaultRetryBackoff,
		maxBackoff:   defaultMaxBackoff,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *JudgeResultWorker) Start(ctx context.Context) {
	w.logger.InfoContext(ctx, "Judge result worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Judge result worker stopping")
			return
		default:
		}

		res, err := w.source.PopResult(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.ErrorContext(ctx, "Failed to pop judge result", "error", err)
			w.sleep(ctx, w.errorBackoff)
			continue
		}
		if res == nil {
			continue
		}
		w.process(ctx, *res)
	}
}

func (w *JudgeResultWorker) process(ctx context.Context, res model.JudgeResult) {
	log := w.logger.With("submission_id", res.SubmissionID, "verdict", res.Verdict)

	lock, err := w.locker.Acquire(ctx, res.SubmissionID)
	if err != nil {
		if errors.Is(err, common.ErrLockNotAcquired) {
			log.InfoContext(ctx, "Submission is being judged elsewhere, re-queueing")
		} else {
			log.ErrorContext(ctx, "Failed to acquire submission lock", "error", err)
		}
		w.sleep(ctx, w.retryBackoff)
		w.requeue(ctx, res)
		return
	}
	out, err := w.handler.HandleJudgeResult(ctx, res)
	// released before any retry backoff so other workers are not held up
	w.release(ctx, log, lock)
	if err != nil {
		w.retry(ctx, log, res, err)
		return
	}

	log.InfoContext(ctx, "Judge result applied",
		"already_judged", out.AlreadyJudged,
		"credited", out.Credited,
		"skip_reason", out.SkipReason,
		"points", out.PointsEarned,
		"xp", out.XPGranted,
	)
}

func (w *JudgeResultWorker) release(ctx context.Context, log *slog.Logger, lock Lock) {
	released, err := lock.Release(context.WithoutCancel(ctx))
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to release submission lock", "error", err)
	case !released:
		log.WarnContext(ctx, "Submission lock expired before release")
	}
}

func (w *JudgeResultWorker) retry(ctx context.Context, log *slog.Logger, res model.JudgeResult, err error) {
	if errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) {
		log.WarnContext(ctx, "Dropping unusable judge result", "error", err)
		return
	}
	res.Attempts++
	if res.Attempts >= w.maxAttempts {
		log.ErrorContext(ctx, "Giving up on judge result", "attempts", res.Attempts, "error", err)
		if err := w.source.DeadLetter(context.WithoutCancel(ctx), res); err != nil {
			log.ErrorContext(ctx, "Failed to dead-letter judge result", "error", err)
		}
		return
	}
	delay := w.backoff(res.Attempts)
	log.ErrorContext(ctx, "Failed to apply judge result, retrying",
		"attempts", res.Attempts,
		"backoff", delay,
		"error", err,
	)
	w.sleep(ctx, delay)
	w.requeue(ctx, res)
}

// backoff doubles the retry delay per attempt up to maxBackoff.
func (w *JudgeResultWorker) backoff(attempt int) time.Duration {
	d := w.retryBackoff
	for i := 1; i < attempt && d < w.maxBackoff; i++ {
		d *= 2
	}
	return min(d, w.maxBackoff)
}

// requeue outlives ctx so a result is not lost when shutdown interrupts a backoff.
func (w *JudgeResultWorker) requeue(ctx context.Context, res model.JudgeResult) {
	if err := w.source.Requeue(context.WithoutCancel(ctx), res); err != nil {
		w.logger.ErrorContext(ctx, "Failed to re-queue judge result",
			"submission_id", res.SubmissionID,
			"error", err,
		)
	}
}

func (w *JudgeResultWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
