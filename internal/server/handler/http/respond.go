package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps service errors to status codes and {message} bodies.
// notFound is the message used when the record does not exist.
func writeError(w http.ResponseWriter, log *zap.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, service.ErrInvalidOTP):
		writeMessage(w, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, service.ErrOutOfStock):
		writeMessage(w, http.StatusBadRequest, "Not enough stock")
	case errors.Is(err, service.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
		writeMessage(w, http.StatusBadRequest, msg)
	case errors.Is(err, service.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	default:
		log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}
