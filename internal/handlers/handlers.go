package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"merchantpay/internal/apperr"

	"go.uber.org/zap"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorBody{
		"error": {Kind: string(kindForStatus(status)), Code: code, Message: message},
	})
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:          http.StatusBadRequest,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindInvalidTransition:   http.StatusConflict,
	apperr.KindDuplicateSubmission: http.StatusConflict,
	apperr.KindInsufficientBalance: http.StatusUnprocessableEntity,
	apperr.KindConfiguration:       http.StatusInternalServerError,
	apperr.KindCrypto:              http.StatusInternalServerError,
	apperr.KindInternal:            http.StatusInternalServerError,
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return "unauthorized"
	}
	return apperr.KindInternal
}

// respondServiceError maps a core failure to its HTTP status. Server-side
// failures are logged and answered with a generic message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
		respondJSON(w, status, map[string]errorBody{
			"error": {Kind: string(kind), Code: "internal_error", Message: "internal error"},
		})
		return
	}
	var appErr *apperr.Error
	body := errorBody{Kind: string(kind)}
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Message = appErr.Message
	}
	respondJSON(w, status, map[string]errorBody{"error": body})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return false
	}
	return true
}

func pagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
