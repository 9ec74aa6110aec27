package httpkit

import (
	"encoding/json"
	"net/http"
)

// errorPayload is the wire shape of every failed request. Clients switch
// on code, message is for humans, details carries the identifiers a
// handler attached to the error.
type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

// WriteJSON serializes body with the given status. Encode errors are
// dropped, the status line is already on the wire by then.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError emits the error envelope shared across the ops API.
func WriteError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	WriteJSON(w, status, errorEnvelope{Error: errorPayload{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
