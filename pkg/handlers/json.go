// Small helpers for writing JSON responses. Handlers respond with either a
// payload via respondJSON or an {"error": ...} object via respondJSONError so
// clients can rely on one error shape across endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

func respondJSONError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
