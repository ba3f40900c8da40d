package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

const JudgeSecretHeader = "X-Judge-Secret"

// JudgeResultApplier is satisfied by *service.JudgeService.
type JudgeResultApplier interface {
	HandleJudgeResult(ctx context.Context, res model.JudgeResult) (*service.JudgeOutcome, error)
}

// JudgeHandler receives verdicts pushed by the external judge over HTTP.
type JudgeHandler struct {
	judge  JudgeResultApplier
	secret []byte
	logger *slog.Logger
}

func NewJudgeHandler(judge JudgeResultApplier, secret string, logger *slog.Logger) *JudgeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JudgeHandler{judge: judge, secret: []byte(secret), logger: logger}
}

func (h *JudgeHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.requireSecret)
	r.Post("/results", h.handleResult)
}

func (h *JudgeHandler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.secret) == 0 {
			common.RespondWithError(w, http.StatusServiceUnavailable, "Judge webhook is not configured")
			return
		}
		got := []byte(r.Header.Get(JudgeSecretHeader))
		if subtle.ConstantTimeCompare(got, h.secret) != 1 {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid judge secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *JudgeHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var res model.JudgeResult
	if !decodeJSON(w, r, &res) {
		h.logger.WarnContext(r.Context(), "Invalid judge result payload")
		return
	}

	out, err := h.judge.HandleJudgeResult(r.Context(), res)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to apply judge result",
			"submission_id", res.SubmissionID,
			"error", err,
		)
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, out)
}
