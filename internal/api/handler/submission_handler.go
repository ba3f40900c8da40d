package handler

import (
	"net/http"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(ss *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All submission routes require auth
	r.With(middleware.PlayerOnly).Post("/", h.createSubmission)
	r.With(middleware.PlayerOnly).Get("/me", h.listMySubmissions)
	r.Get("/{submissionID}", h.getSubmission)
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())

	var req service.CreateSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	submission, err := h.submissionService.CreateSubmission(r.Context(), playerID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, submission) // judged asynchronously
}

func (h *SubmissionHandler) listMySubmissions(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	page, limit := common.PageParams(r, 20, 100)

	subs, err := h.submissionService.ListMySubmissions(r.Context(), playerID, r.URL.Query().Get("problem_id"), page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	sub, err := h.submissionService.GetSubmission(r.Context(), playerID, role, chi.URLParam(r, "submissionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}
