package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"grounded/model"
	"grounded/utils"
	"grounded/utils/database/bonuses"
)

// BonusHandler serves the weekly bonus-claim queue.
type BonusHandler struct {
	app Provider
}

func NewBonusHandler(app Provider) *BonusHandler {
	return &BonusHandler{app: app}
}

// List handles GET /api/bonuses. Returns the current week's instances.
func (h *BonusHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	weekStart := bonuses.WeekStart(h.app.GetEngine().Now())
	instances, err := bonuses.ListWeek(h.app.GetDB(), weekStart)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"week_start": weekStart,
		"instances":  instances,
	})
}

// AddDef handles POST /api/bonuses/defs: adds a weekly bonus chore. It joins
// the queue at the next week reset (or an explicit reseed).
func (h *BonusHandler) AddDef(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var def model.BonusDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if def.Label == "" {
		utils.RespondMessage(w, http.StatusBadRequest, "label is required")
		return
	}
	if def.PhoneMin < 0 || def.GamesMin < 0 {
		utils.RespondMessage(w, http.StatusBadRequest, "minutes must not be negative")
		return
	}

	id, err := bonuses.AddDef(h.app.GetDB(), def)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// Claim handles POST /api/bonuses/claim. First-come: a race loser gets 409.
func (h *BonusHandler) Claim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		InstanceID int64 `json:"instance_id"`
		KidID      int64 `json:"kid_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := bonuses.Claim(h.app.GetDB(), request.InstanceID, request.KidID, h.app.GetEngine().Now())
	if err != nil {
		if errors.Is(err, bonuses.ErrUnavailable) {
			utils.RespondMessage(w, http.StatusConflict, "bonus is not available")
			return
		}
		if errors.Is(err, bonuses.ErrUnknownKid) {
			utils.RespondMessage(w, http.StatusNotFound, "unknown kid")
			return
		}
		respondEngineError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "bonus claimed")
}

// Approve handles POST /api/bonuses/approve. Credits the claimer's banks.
func (h *BonusHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// Reject handles POST /api/bonuses/reject.
func (h *BonusHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *BonusHandler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		InstanceID int64 `json:"instance_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if approve {
		err = bonuses.Approve(h.app.GetDB(), request.InstanceID, h.app.GetEngine().Now())
	} else {
		err = bonuses.Reject(h.app.GetDB(), request.InstanceID, h.app.GetEngine().Now())
	}
	if err != nil {
		if errors.Is(err, bonuses.ErrUnavailable) {
			utils.RespondMessage(w, http.StatusConflict, "bonus is not in a claimable state")
			return
		}
		respondEngineError(w, err)
		return
	}
	utils.RespondMessage(w, http.StatusOK, "bonus resolved")
}
