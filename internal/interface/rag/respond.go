package rag

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	httpErr := asHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", httpErr.Code, "error", httpErr.Err)
	}
	writeJSON(w, logger, httpErr.Status, map[string]any{
		"error": map[string]string{"code": httpErr.Code, "message": httpErr.Message},
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
