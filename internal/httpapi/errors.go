package httpapi

import (
	"encoding/json"
	"net/http"
)

// APIError is the engine's error envelope. Code is a stable
// machine-readable tag (not_found, crawl_failed, ...); Message is for
// humans. The request id echoes X-Request-ID so a failed crawl trigger
// can be matched to its log lines.
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteJSON encodes v with the given status. Encoding failures are
// swallowed: the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError emits an APIError envelope carrying the request's id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}
