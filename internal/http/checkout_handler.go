package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type CheckoutRequestDTO struct {
	CustomerInfo domain.CustomerInfo `json:"customer_info"`
}

type CheckoutStatusDTO struct {
	State          domain.CheckoutState `json:"state"`
	Order          *domain.Order        `json:"order,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
	Error          string               `json:"error,omitempty"`
}

func checkoutStatus(s *session.Session) CheckoutStatusDTO {
	status := CheckoutStatusDTO{State: s.Checkout.State()}
	if order, ok := s.Checkout.LastOrder(); ok && status.State == domain.CheckoutSucceeded {
		status.Order = order
	}
	if key, ok := s.Checkout.PendingKey(); ok {
		status.IdempotencyKey = key
	}
	if err := s.Checkout.LastError(); err != nil {
		status.Error = err.Error()
	}
	return status
}

// Submit places the order. If the request ends before the Order Service
// answers, the client gets 202 and polls GET /checkout for the outcome.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	order, err := s.Checkout.Submit(ctx, req.CustomerInfo)
	if errors.Is(err, apperr.ErrOutcomePending) {
		loggerFromContext(r.Context()).Info("checkout outcome pending", "session_id", s.ID)
		respondJSON(w, r, http.StatusAccepted, checkoutStatus(s))
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, CheckoutStatusDTO{State: domain.CheckoutSucceeded, Order: order})
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, checkoutStatus(sessionFromContext(r.Context())))
}

func (h *CheckoutHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	if _, err := s.Checkout.Reconcile(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, checkoutStatus(s))
}

// withTimeout bounds a handler's outbound calls. Zero means no extra bound.
func withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), d)
}
