package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/checkout"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		loggerFromContext(r.Context()).Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts the error taxonomy to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:  err.Error(),
			Code:   "validation_failed",
			Fields: ve.Fields,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, apperr.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperr.ErrInvalidQuantity):
		httpStatus, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, apperr.ErrOutOfStock):
		httpStatus, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, apperr.ErrAlreadySubmitting):
		httpStatus, code = http.StatusConflict, "already_submitting"
	case errors.Is(err, checkout.ErrNothingToReconcile):
		httpStatus, code = http.StatusConflict, "nothing_to_reconcile"
	case errors.Is(err, apperr.ErrSessionExpired):
		httpStatus, code = http.StatusUnauthorized, "session_expired"
	case errors.Is(err, apperr.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrNetwork):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, apperr.ErrServer):
		httpStatus, code = http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		loggerFromContext(r.Context()).Error("unhandled error", "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var se *apperr.ServerError
	if errors.As(err, &se) {
		resp.Details = se.Code
	}
	respondJSON(w, r, httpStatus, resp)
}
