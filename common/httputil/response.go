package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatusBody is the JSON shape of every webhook outcome and error: a human readable
// text and the numeric HTTP status.
type StatusBody struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

// WriteJSON writes a JSON response with the given status code and data.
// Encoding errors are logged; the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, StatusBody{Text: message, Code: status})
}
