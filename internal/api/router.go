package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	"tle_arena/internal/api/handler"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Auth        *service.AuthService
	Problems    *service.ProblemService
	Submissions *service.SubmissionService
	Contests    *service.ContestService
	Leaderboard *service.LeaderboardService
	Players     *service.PlayerService
	Ledger      *service.XPLedgerService
	Judge       handler.JudgeResultApplier
}

type Options struct {
	JudgeSecret string
	JudgeRPS    float64
	JudgeBurst  int
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// HealthChecks run on every /health request; any failure answers 503.
	HealthChecks map[string]func(context.Context) error
	Logger       *slog.Logger
}

func NewRouter(svc Services, opts Options) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Searches for "Authorization: Bearer T"; handlers that need a caller add
	// middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", healthHandler(opts.HealthChecks, opts.Logger))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/auth", handler.NewAuthHandler(svc.Auth).RegisterRoutes)

		v1.Route("/problems", handler.NewProblemHandler(svc.Problems).RegisterRoutes)
		v1.Route("/submissions", handler.NewSubmissionHandler(svc.Submissions).RegisterRoutes)
		v1.Route("/contests", handler.NewContestHandler(svc.Contests).RegisterRoutes)
		v1.Route("/leaderboard", handler.NewLeaderboardHandler(svc.Leaderboard).RegisterRoutes)
		v1.Route("/players", handler.NewPlayerHandler(svc.Players, svc.Ledger).RegisterRoutes)

		judgeHandler := handler.NewJudgeHandler(svc.Judge, opts.JudgeSecret, opts.Logger)
		v1.Route("/judge", func(jr chi.Router) {
			jr.Use(middleware.RateLimit(middleware.NewIPRateLimiter(opts.JudgeRPS, opts.JudgeBurst)))
			judgeHandler.RegisterRoutes(jr)
		})
	})

	return r
}

func healthHandler(checks map[string]func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Health check failed", "dependency", name, "error", err)
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("OK"))
	}
}
