package handler

import (
	"net/http"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService *service.ContestService
}

func NewContestHandler(cs *service.ContestService) *ContestHandler {
	return &ContestHandler{contestService: cs}
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(middleware.OptionalAuthenticator)
		public.Get("/", h.listContests)
		public.Get("/{contestID}", h.getContest) // id or slug
		public.Get("/{contestID}/problems", h.contestProblems)
	})

	r.Group(func(staff chi.Router) {
		staff.Use(middleware.Authenticator)
		staff.Use(middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
		staff.Post("/", h.createContest)
		staff.Patch("/{contestID}", h.updateContest)
		staff.Post("/{contestID}/status", h.changeStatus)
		staff.Post("/{contestID}/finalize", h.finalize)
	})

	r.Group(func(players chi.Router) {
		players.Use(middleware.Authenticator)
		players.Use(middleware.PlayerOnly)
		players.Post("/{contestID}/join", h.joinContest)
	})
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.CreateContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	contest, err := h.contestService.CreateContest(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) updateContest(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateContestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, role := caller(r)
	contest, err := h.contestService.UpdateContest(r.Context(), userID, role, chi.URLParam(r, "contestID"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, role := caller(r)
	change, err := h.contestService.ChangeStatus(r.Context(), userID, role, chi.URLParam(r, "contestID"), req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, change)
}

func (h *ContestHandler) finalize(w http.ResponseWriter, r *http.Request) {
	userID, role := caller(r)
	fin, err := h.contestService.Finalize(r.Context(), userID, role, chi.URLParam(r, "contestID"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, fin)
}

func (h *ContestHandler) joinContest(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())

	var req service.JoinContestRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	participant, err := h.contestService.JoinContest(r.Context(), playerID, chi.URLParam(r, "contestID"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, participant)
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	contest, err := h.contestService.GetContest(r.Context(), chi.URLParam(r, "contestID"), userID, role)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	role, _ := middleware.GetUserRoleFromContext(r.Context())
	page, limit := common.PageParams(r, 20, 100)

	contests, err := h.contestService.ListContests(r.Context(), r.URL.Query().Get("status"), role, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contests)
}

func (h *ContestHandler) contestProblems(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	problems, err := h.contestService.ContestProblems(r.Context(), chi.URLParam(r, "contestID"), playerID, role)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}
