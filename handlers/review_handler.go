package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"grounded/utils"
	"grounded/utils/database/infractions"
)

// ReviewHandler serves the review queue and resolution endpoint.
type ReviewHandler struct {
	app Provider
}

func NewReviewHandler(app Provider) *ReviewHandler {
	return &ReviewHandler{app: app}
}

// Due handles GET /api/reviews/due?horizon_days=N. Default horizon comes
// from the app config.
func (h *ReviewHandler) Due(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	horizonDays := h.app.GetConfig().ReviewHorizonDays
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			horizonDays = n
		}
	}

	events, err := h.app.GetEngine().ListDue(horizonDays)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, events)
}

// Upcoming handles GET /api/reviews/upcoming?horizon_days=N: unreviewed
// events whose review date is past today but within the horizon.
func (h *ReviewHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	horizonDays := h.app.GetConfig().ReviewHorizonDays
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			horizonDays = n
		}
	}

	now := h.app.GetEngine().Now()
	today := utils.DateFromTime(now)
	horizon := utils.DateFromTime(now.AddDate(0, 0, horizonDays))
	events, err := infractions.ListUpcoming(h.app.GetDB(), today, horizon, 200)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, events)
}

// Resolve handles POST /api/reviews/resolve.
func (h *ReviewHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		EventID     int64  `json:"event_id"`
		Action      string `json:"action"`
		KeepMinutes int    `json:"keep_minutes"`
		Note        string `json:"note"`
		Actor       string `json:"actor"`
		ResetStrike bool   `json:"reset_strike"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.app.GetEngine().Resolve(request.EventID, request.Action, request.KeepMinutes,
		actorOrAdmin(request.Actor), request.Note, request.ResetStrike)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
