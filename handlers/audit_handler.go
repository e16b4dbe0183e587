package handlers

import (
	"net/http"
	"strconv"

	"grounded/utils"
	"grounded/utils/database/audit"
)

// AuditHandler returns a GET handler serving the newest audit entries.
func AuditHandler(app Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		entries, err := audit.ListRecent(app.GetDB(), limit)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, entries)
	}
}
