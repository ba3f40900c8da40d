package handler

import (
	"net/http"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/report"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

func NewLeaderboardHandler(ls *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: ls}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/global", h.globalBoard)                // ?tier=GOLD
	r.With(middleware.OptionalAuthenticator).Get("/contests/{contestID}", h.contestBoard) // ?mode=LEGEND
	r.With(middleware.Authenticator, middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin)).
		Get("/contests/{contestID}/export", h.exportStandings)
}

func (h *LeaderboardHandler) contestBoard(w http.ResponseWriter, r *http.Request) {
	page, limit := common.PageParams(r, 50, 200)
	_, role := caller(r)
	board, err := h.leaderboardService.ContestBoard(r.Context(), chi.URLParam(r, "contestID"), r.URL.Query().Get("mode"), role, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) globalBoard(w http.ResponseWriter, r *http.Request) {
	page, limit := common.PageParams(r, 50, 200)
	board, err := h.leaderboardService.GlobalBoard(r.Context(), r.URL.Query().Get("tier"), page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) exportStandings(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.leaderboardService.ExportStandings(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithFile(w, report.XLSXContentType, filename, data)
}
