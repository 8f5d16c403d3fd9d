package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OrderService is the remote service that accepts orders.
type OrderService interface {
	SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderConfirmation, error)
	FindOrder(ctx context.Context, idempotencyKey string) (domain.OrderConfirmation, error)
}

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Snapshot() domain.CartSnapshot
	Clear()
}

// Recorder receives checkout outcomes, e.g. for metrics.
type Recorder interface {
	ObserveCheckout(outcome string, elapsed time.Duration)
}

const (
	OutcomeSucceeded      = "succeeded"
	OutcomeReconciled     = "reconciled"
	OutcomeNetwork        = "network_error"
	OutcomeServer         = "server_error"
	OutcomeSessionExpired = "session_expired"
)

// attempt is one submission. done is closed once the outcome is recorded.
type attempt struct {
	order    domain.Order
	snapshot domain.CartSnapshot
	done     chan struct{}
	accepted *domain.Order
	err      error
}

type Orchestrator struct {
	cart     Cart
	orders   OrderService
	log      *logger.Logger
	recorder Recorder
	timeout  time.Duration
	newKey   func() string
	now      func() time.Time

	mu        sync.Mutex
	state     domain.CheckoutState
	current   *attempt
	lastOrder *domain.Order
	lastErr   error

	wg sync.WaitGroup
}

type Option func(*Orchestrator)

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTimeout bounds a single submission, independent of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithKeyFunc(f func() string) Option {
	return func(o *Orchestrator) { o.newKey = f }
}

func NewOrchestrator(cart Cart, orders OrderService, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:    cart,
		orders:  orders,
		log:     logger.Nop(),
		timeout: 30 * time.Second,
		newKey:  uuid.NewString,
		now:     time.Now,
		state:   domain.CheckoutIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates the cart and customer, then sends one order built from an
// immutable snapshot of the cart. Only one submission runs at a time.
//
// If ctx ends before the Order Service answers, Submit returns
// ErrOutcomePending; the submission keeps running and its outcome is
// available from State, LastOrder and LastError.
func (o *Orchestrator) Submit(ctx context.Context, customer domain.CustomerInfo) (*domain.Order, error) {
	o.mu.Lock()
	snapshot := o.cart.Snapshot()
	if snapshot.Empty() {
		o.mu.Unlock()
		return nil, apperr.ErrEmptyCart
	}
	if fields := customer.MissingFields(); len(fields) > 0 {
		o.mu.Unlock()
		return nil, apperr.NewValidationError(fields...)
	}
	if o.state == domain.CheckoutSubmitting {
		o.mu.Unlock()
		return nil, apperr.ErrAlreadySubmitting
	}

	key := o.keyFor(snapshot, customer)
	if o.state.IsTerminal() {
		if err := o.transition(domain.CheckoutIdle); err != nil {
			o.mu.Unlock()
			return nil, err
		}
	}
	if err := o.transition(domain.CheckoutSubmitting); err != nil {
		o.mu.Unlock()
		return nil, err
	}

	at := &attempt{
		order: domain.Order{
			IdempotencyKey: key,
			Items:          snapshot.Items,
			Customer:       customer,
			Total:          snapshot.Total,
			SubmittedAt:    o.now(),
		},
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
	o.current = at
	o.lastErr = nil
	o.wg.Add(1)
	o.mu.Unlock()

	o.log.WithContext(ctx).Info("submitting order", "idempotency_key", key, "items", len(snapshot.Items), "total", snapshot.Total.StringFixed(2))
	go o.send(ctx, at)

	select {
	case <-at.done:
		if at.err != nil {
			return nil, at.err
		}
		return at.accepted, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", apperr.ErrOutcomePending, ctx.Err())
	}
}

// keyFor reuses the previous idempotency key when the last attempt ended
// without a known answer and the order would be identical. Must hold o.mu.
func (o *Orchestrator) keyFor(snapshot domain.CartSnapshot, customer domain.CustomerInfo) string {
	prev := o.current
	if o.state == domain.CheckoutFailed && prev != nil && apperr.IsRetryable(o.lastErr) &&
		prev.order.Customer == customer && prev.snapshot.SameContents(snapshot) {
		return prev.order.IdempotencyKey
	}
	return o.newKey()
}

func (o *Orchestrator) send(parent context.Context, at *attempt) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.timeout)
	defer cancel()
	ctx, span := otel.Tracer("storefront/checkout").Start(ctx, "checkout.submit")
	span.SetAttributes(attribute.String("checkout.idempotency_key", at.order.IdempotencyKey))
	defer span.End()

	start := o.now()
	conf, err := o.orders.SubmitOrder(ctx, at.order)
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.complete(at, conf, err, time.Since(start))
}

func (o *Orchestrator) complete(at *attempt, conf domain.OrderConfirmation, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer close(at.done)

	if err != nil {
		at.err = err
		o.lastErr = err
		if terr := o.transition(domain.CheckoutFailed); terr != nil {
			o.log.Error("checkout state", "error", terr)
		}
		o.observe(outcomeOf(err), elapsed)
		o.log.Warn("order submission failed", "idempotency_key", at.order.IdempotencyKey, "error", err)
		return
	}

	o.succeed(at, conf)
	o.observe(OutcomeSucceeded, elapsed)
	o.log.Info("order accepted", "idempotency_key", at.order.IdempotencyKey, "order_id", conf.OrderID)
}

// succeed records the accepted order and empties the cart. Must hold o.mu.
func (o *Orchestrator) succeed(at *attempt, conf domain.OrderConfirmation) {
	accepted := at.order.Accepted(conf)
	// the caller gets its own copy
	returned := at.order.Accepted(conf)
	at.accepted = &returned
	at.err = nil
	if err := o.transition(domain.CheckoutSucceeded); err != nil {
		o.log.Error("checkout state", "error", err)
	}
	o.cart.Clear()
	o.lastOrder = &accepted
	o.lastErr = nil
}

// Reconcile asks the Order Service whether the last attempt, whose outcome
// was never learned, was accepted after all.
func (o *Orchestrator) Reconcile(ctx context.Context) (*domain.Order, error) {
	o.mu.Lock()
	switch {
	case o.state == domain.CheckoutSubmitting:
		o.mu.Unlock()
		return nil, apperr.ErrAlreadySubmitting
	case o.state == domain.CheckoutSucceeded && o.lastOrder != nil:
		order := o.copyLastOrder()
		o.mu.Unlock()
		return order, nil
	case o.state != domain.CheckoutFailed || o.current == nil || !apperr.IsRetryable(o.lastErr):
		o.mu.Unlock()
		return nil, ErrNothingToReconcile
	}
	at := o.current
	key := at.order.IdempotencyKey
	o.mu.Unlock()

	conf, err := o.orders.FindOrder(ctx, key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, classify(err)
	}
	return o.resolve(at, conf, OutcomeReconciled)
}

// ApplyConfirmation records a confirmation that arrived out of band, e.g. from
// the order event stream. It reports whether the key belonged to this
// orchestrator's last attempt.
func (o *Orchestrator) ApplyConfirmation(idempotencyKey string, conf domain.OrderConfirmation) bool {
	o.mu.Lock()
	at := o.current
	if at == nil || at.order.IdempotencyKey != idempotencyKey {
		o.mu.Unlock()
		return false
	}
	// the in-flight call will deliver its own answer
	if o.state == domain.CheckoutSubmitting {
		o.mu.Unlock()
		return true
	}
	if o.state == domain.CheckoutSucceeded && o.lastOrder != nil && o.lastOrder.IdempotencyKey == idempotencyKey {
		updated := o.lastOrder.Accepted(conf)
		o.lastOrder = &updated
		o.mu.Unlock()
		return true
	}
	o.mu.Unlock()

	_, err := o.resolve(at, conf, OutcomeReconciled)
	return err == nil
}

func (o *Orchestrator) resolve(at *attempt, conf domain.OrderConfirmation, outcome string) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != at || o.state != domain.CheckoutFailed {
		return nil, ErrNothingToReconcile
	}
	o.succeed(at, conf)
	o.observe(outcome, 0)
	o.log.Info("order reconciled", "idempotency_key", at.order.IdempotencyKey, "order_id", conf.OrderID)
	return o.copyLastOrder(), nil
}

func (o *Orchestrator) State() domain.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) LastOrder() (*domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastOrder == nil {
		return nil, false
	}
	return o.copyLastOrder(), true
}

func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// PendingKey returns the idempotency key of the attempt in flight or with
// an unknown outcome.
func (o *Orchestrator) PendingKey() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return "", false
	}
	if o.state == domain.CheckoutSubmitting || (o.state == domain.CheckoutFailed && apperr.IsRetryable(o.lastErr)) {
		return o.current.order.IdempotencyKey, true
	}
	return "", false
}

// Wait blocks until no submission is in flight.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) copyLastOrder() *domain.Order {
	order := o.lastOrder.Accepted(domain.OrderConfirmation{OrderID: o.lastOrder.OrderID, Status: o.lastOrder.Status})
	return &order
}

func (o *Orchestrator) transition(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.state, to)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) observe(outcome string, elapsed time.Duration) {
	if o.recorder != nil {
		o.recorder.ObserveCheckout(outcome, elapsed)
	}
}

// classify maps anything the Order Service call produced onto the error
// taxonomy. A timeout of the submission itself is a network failure.
func classify(err error) error {
	switch {
	case errors.Is(err, apperr.ErrSessionExpired),
		errors.Is(err, apperr.ErrNetwork),
		errors.Is(err, apperr.ErrServer):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Network("submit order", err)
	}
	return fmt.Errorf("submit order: %w", &apperr.ServerError{Message: err.Error()})
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrSessionExpired):
		return OutcomeSessionExpired
	case errors.Is(err, apperr.ErrNetwork):
		return OutcomeNetwork
	}
	return OutcomeServer
}
