package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"validation", apperr.NewValidationError("name"), http.StatusBadRequest, "validation_failed", ""},
		{"empty cart", apperr.ErrEmptyCart, http.StatusBadRequest, "empty_cart", ""},
		{"invalid quantity", apperr.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity", ""},
		{"out of stock", fmt.Errorf("product 3: %w", apperr.ErrOutOfStock), http.StatusConflict, "out_of_stock", ""},
		{"already submitting", apperr.ErrAlreadySubmitting, http.StatusConflict, "already_submitting", ""},
		{"nothing to reconcile", checkout.ErrNothingToReconcile, http.StatusConflict, "nothing_to_reconcile", ""},
		{"session expired", fmt.Errorf("orders: %w", apperr.ErrSessionExpired), http.StatusUnauthorized, "session_expired", ""},
		{"upstream 404", &apperr.ServerError{Status: 404, Message: "Not found."}, http.StatusNotFound, "not_found", ""},
		{"network", apperr.Network("submit order", errors.New("connection refused")), http.StatusServiceUnavailable, "service_unavailable", ""},
		{"server", &apperr.ServerError{Status: 409, Code: "duplicate", Message: "exists"}, http.StatusBadGateway, "upstream_error", "duplicate"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantDetails, resp.Details)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleError_UnknownErrorHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("database password is hunter2"))

	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}

func TestLoggerMiddleware_TagsRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	handler := RequestIDMiddleware(LoggerMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleError(w, r, errors.New("boom"))
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	entries := logs.FilterMessage("unhandled error").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc-123", fields["request_id"])
	assert.Equal(t, "boom", fields["error"])
}
