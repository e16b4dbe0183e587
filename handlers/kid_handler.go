package handlers

import (
	"encoding/json"
	"net/http"

	"grounded/utils"
	"grounded/utils/database/kids"
)

// KidHandler serves the kid roster.
type KidHandler struct {
	app Provider
}

func NewKidHandler(app Provider) *KidHandler {
	return &KidHandler{app: app}
}

// Kids handles GET /api/kids (list) and POST /api/kids (add).
func (h *KidHandler) Kids(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id, ok := queryID(r, "id"); ok {
			kid, err := kids.GetByID(h.app.GetDB(), id)
			if err != nil {
				utils.RespondMessage(w, http.StatusNotFound, "kid not found")
				return
			}
			utils.RespondJSON(w, http.StatusOK, kid)
			return
		}
		all, err := kids.List(h.app.GetDB())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, all)

	case http.MethodPost:
		var request struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			utils.RespondMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if request.Name == "" {
			utils.RespondMessage(w, http.StatusBadRequest, "name is required")
			return
		}
		id, err := kids.Add(h.app.GetDB(), request.Name)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusCreated, map[string]int64{"id": id})

	default:
		utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
