package api

import (
	"encoding/json"
	"net/http"

	"telegram-digital-store/internal/domain"
)

type errorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// StatusOf maps an error kind onto its HTTP status.
func StatusOf(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidRequest, domain.KindInvalidSignature:
		return http.StatusBadRequest
	case domain.KindGateway:
		return http.StatusBadGateway
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {"error":{"kind","message"}}. Internal errors
// never leak their text.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	switch kind {
	case domain.KindInternal:
		msg = "internal error"
	case domain.KindGateway:
		msg = "payment provider error"
	}
	WriteJSON(w, StatusOf(kind), map[string]errorBody{"error": {Kind: kind, Message: msg}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
