package handlers

import (
	"encoding/json"
	"net/http"

	"grounded/utils"
)

// PrivilegesHandler serves privilege reads and the direct admin overrides.
type PrivilegesHandler struct {
	app Provider
}

func NewPrivilegesHandler(app Provider) *PrivilegesHandler {
	return &PrivilegesHandler{app: app}
}

// Get handles GET /api/privileges?kid_id=N. Reading applies lazy expiry.
func (h *PrivilegesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kidID, ok := queryID(r, "kid_id")
	if !ok {
		utils.RespondMessage(w, http.StatusBadRequest, "kid_id is required")
		return
	}

	pv, err := h.app.GetEngine().GetPrivileges(kidID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, pv.View())
}

// SetLocks handles POST /api/privileges/locks.
func (h *PrivilegesHandler) SetLocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		KidID int64  `json:"kid_id"`
		Phone bool   `json:"phone"`
		Games bool   `json:"games"`
		Other bool   `json:"other"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.app.GetEngine().SetLocks(request.KidID, request.Phone, request.Games, request.Other, actorOrAdmin(request.Actor))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "locks updated")
}

// SetBanks handles POST /api/privileges/banks.
func (h *PrivilegesHandler) SetBanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		KidID    int64  `json:"kid_id"`
		PhoneMin int    `json:"phone_min"`
		GamesMin int    `json:"games_min"`
		OtherMin int    `json:"other_min"`
		Actor    string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.app.GetEngine().SetBanks(request.KidID, request.PhoneMin, request.GamesMin, request.OtherMin, actorOrAdmin(request.Actor))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "banks updated")
}

// Extend handles POST /api/privileges/extend. The duration accepts either
// minutes or a duration string like "24h" or "2d".
func (h *PrivilegesHandler) Extend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		KidID    int64  `json:"kid_id"`
		Minutes  int    `json:"minutes"`
		Duration string `json:"duration"`
		Actor    string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	minutes := request.Minutes
	if request.Duration != "" {
		d, err := utils.ParseDuration(request.Duration)
		if err != nil {
			utils.RespondMessage(w, http.StatusBadRequest, "invalid duration")
			return
		}
		minutes = int(d.Minutes())
	}

	extended, err := h.app.GetEngine().ExtendAllLocked(request.KidID, minutes, actorOrAdmin(request.Actor))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"extended": extended})
}

func actorOrAdmin(actor string) string {
	if actor == "" {
		return "admin"
	}
	return actor
}
