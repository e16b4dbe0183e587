package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"grounded/model"
	"grounded/utils"
	"grounded/utils/database/infractions"
)

// InfractionHandler serves definition listing, previews and applications.
type InfractionHandler struct {
	app Provider
}

func NewInfractionHandler(app Provider) *InfractionHandler {
	return &InfractionHandler{app: app}
}

// Defs handles the definition admin surface: GET /api/infractions/defs?all=1
// lists (without all, only active definitions — the default-picker view),
// POST adds a definition, PUT overwrites one.
func (h *InfractionHandler) Defs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("all") != "1"
		defs, err := infractions.ListDefs(h.app.GetDB(), activeOnly)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, defs)

	case http.MethodPost:
		def, ok := decodeDef(w, r)
		if !ok {
			return
		}
		id, err := infractions.AddDef(h.app.GetDB(), *def)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusCreated, map[string]int64{"id": id})

	case http.MethodPut:
		def, ok := decodeDef(w, r)
		if !ok {
			return
		}
		if def.ID <= 0 {
			utils.RespondMessage(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := infractions.UpdateDef(h.app.GetDB(), *def); err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondMessage(w, http.StatusOK, "definition updated")

	default:
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func decodeDef(w http.ResponseWriter, r *http.Request) (*model.InfractionDef, bool) {
	var def model.InfractionDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if def.Code == "" || def.Label == "" {
		utils.RespondMessage(w, http.StatusBadRequest, "code and label are required")
		return nil, false
	}
	if def.LadderJSON == "" {
		def.LadderJSON = "[]"
	}
	if def.BlocksJSON == "" {
		def.BlocksJSON = "{}"
	}
	def.Mode = def.NormalizedMode()
	return &def, true
}

// Preview handles GET /api/infractions/preview?kid_id=N&def_id=M (or
// def_code=C). It shows what Apply would do without mutating anything.
func (h *InfractionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kidID, ok := queryID(r, "kid_id")
	if !ok {
		utils.RespondMessage(w, http.StatusBadRequest, "kid_id is required")
		return
	}
	defID, ok := queryID(r, "def_id")
	if !ok {
		code := r.URL.Query().Get("def_code")
		if code == "" {
			utils.RespondMessage(w, http.StatusBadRequest, "def_id or def_code is required")
			return
		}
		def, err := infractions.GetDefByCode(h.app.GetDB(), code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				utils.RespondMessage(w, http.StatusNotFound, "unknown definition code")
				return
			}
			respondEngineError(w, err)
			return
		}
		defID = def.ID
	}

	result, err := h.app.GetEngine().Preview(kidID, defID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// Apply handles POST /api/infractions/apply.
func (h *InfractionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request struct {
		KidID int64  `json:"kid_id"`
		DefID int64  `json:"def_id"`
		Note  string `json:"note"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.app.GetEngine().Apply(request.KidID, request.DefID, request.Note, actorOrAdmin(request.Actor))
	if err != nil {
		respondEngineError(w, err)
		return
	}

	// Notification failures never fail the mutation.
	cfg := h.app.GetConfig()
	if err := utils.LogInfo(cfg.WebhookURL, "infraction", "apply",
		result.DefLabel+" -> strike "+strconv.Itoa(result.StrikeAfter)); err != nil {
		log.Printf("Failed to send apply notification: %v", err)
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// Strikes handles GET /api/infractions/strikes?kid_id=N: the kid's current
// ladder position per definition.
func (h *InfractionHandler) Strikes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kidID, ok := queryID(r, "kid_id")
	if !ok {
		utils.RespondMessage(w, http.StatusBadRequest, "kid_id is required")
		return
	}

	counters, err := infractions.ListStrikes(h.app.GetDB(), kidID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, counters)
}

// History handles GET /api/infractions/history?kid_id=N&limit=K.
func (h *InfractionHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kidID, ok := queryID(r, "kid_id")
	if !ok {
		utils.RespondMessage(w, http.StatusBadRequest, "kid_id is required")
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.app.GetEngine().History(kidID, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, events)
}
