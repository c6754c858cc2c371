package fakebackend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	codeSuccess      = 200
	codeBadRequest   = 400
	codeUnauthorized = 401
	codeNotFound     = 404
	codeBusiness     = 422
)

type envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	TraceID   string `json:"trace_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		TraceID:   r.Header.Get(traceHeader),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data any) {
	writeEnvelope(w, r, http.StatusOK, codeSuccess, "success", data)
}

// writeError mirrors the backend's exception handler: the HTTP status follows
// the envelope code for client errors and is 500 otherwise.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	status := code
	if code >= 500 || code < 400 {
		status = http.StatusInternalServerError
	}
	writeEnvelope(w, r, status, code, message, nil)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
