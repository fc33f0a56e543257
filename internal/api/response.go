package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSONResponse encodes data as the response body with the given status.
// Encoding failures can only be logged since the header is already sent.
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Encoding response body", "status", statusCode, "error", err)
	}
}

// WriteErrorResponse answers with {"error": message}
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
