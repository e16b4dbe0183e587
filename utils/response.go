package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON writes v as a JSON response body.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// RespondMessage writes a simple {"error": ...} or {"ok": ...} JSON body.
func RespondMessage(w http.ResponseWriter, status int, message string) {
	key := "ok"
	if status >= 400 {
		key = "error"
	}
	RespondJSON(w, status, map[string]string{key: message})
}
