package handler

import (
	"net/http"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/app/report"
	"tle_arena/internal/app/service"
	"tle_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type PlayerHandler struct {
	playerService *service.PlayerService
	ledger        *service.XPLedgerService
}

func NewPlayerHandler(ps *service.PlayerService, ledger *service.XPLedgerService) *PlayerHandler {
	return &PlayerHandler{playerService: ps, ledger: ledger}
}

type updateModeRequest struct {
	Mode string `json:"mode"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *PlayerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/levels", h.levels)
	r.Get("/{playerID}", h.profile)
	r.With(middleware.Authenticator, middleware.AdminOnly).Put("/{playerID}/status", h.setStatus)

	r.Route("/me", func(me chi.Router) {
		me.Use(middleware.Authenticator)
		me.Use(middleware.PlayerOnly)
		me.Get("/", h.myProfile)
		me.Get("/xp-history", h.myHistory)
		me.Get("/xp-chart.png", h.myChart)
		me.Put("/mode", h.updateMode)
	})
}

func (h *PlayerHandler) levels(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, h.playerService.Levels())
}

func (h *PlayerHandler) profile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, chi.URLParam(r, "playerID"))
}

func (h *PlayerHandler) myProfile(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	h.writeProfile(w, r, playerID)
}

func (h *PlayerHandler) writeProfile(w http.ResponseWriter, r *http.Request, playerID string) {
	profile, err := h.playerService.Profile(r.Context(), playerID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *PlayerHandler) myHistory(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	page, limit := common.PageParams(r, 20, 100)

	history, err := h.ledger.History(r.Context(), playerID, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, history)
}

func (h *PlayerHandler) myChart(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())
	png, err := h.playerService.XPChart(r.Context(), playerID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithFile(w, report.PNGContentType, "", png)
}

func (h *PlayerHandler) updateMode(w http.ResponseWriter, r *http.Request) {
	playerID, _ := middleware.GetPlayerIDFromContext(r.Context())

	var req updateModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	player, err := h.playerService.UpdatePreferredMode(r.Context(), playerID, req.Mode)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, player)
}

func (h *PlayerHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	player, err := h.playerService.SetStatus(r.Context(), chi.URLParam(r, "playerID"), req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, player)
}
