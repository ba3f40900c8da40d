package handler

import (
	"net/http"
	"strings"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ProblemHandler struct {
	problemService *service.ProblemService
}

func NewProblemHandler(ps *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listProblems)            // GET /api/v1/problems
	r.Get("/{problemSlug}", h.getProblem) // GET /api/v1/problems/two-sum

	r.Group(func(staff chi.Router) {
		staff.Use(middleware.Authenticator)
		staff.Use(middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
		staff.Post("/", h.createProblem)
	})
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateProblemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	problem, err := h.problemService.CreateProblem(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	page, limit := common.PageParams(r, 20, 100)
	q := r.URL.Query()

	var tags []string
	if raw := q.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	problems, err := h.problemService.ListProblems(r.Context(), page, limit, q.Get("difficulty"), tags, q.Get("search"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problemService.GetProblem(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}
