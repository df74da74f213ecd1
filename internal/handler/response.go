package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"fsanano/vending/internal/model"
	"fsanano/vending/internal/service"

	"go.uber.org/zap"
)

type response struct {
	Status bool   `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Status: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Status: false, Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeStoreError maps domain errors to a status code. Anything unknown is
// logged and reported as a 500 without detail.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrProductNotFound), errors.Is(err, model.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrNotOwner), errors.Is(err, model.ErrInvalidRole):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrDuplicateName), errors.Is(err, model.ErrDuplicateUser):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidProduct),
		errors.Is(err, model.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidCoin),
		errors.Is(err, service.ErrInvalidDeposit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
