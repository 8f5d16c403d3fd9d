package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Reader is the part of *kafka.Reader the poller uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Resolver applies an order confirmation to whichever checkout is waiting for it.
type Resolver interface {
	ConfirmOrder(idempotencyKey string, conf domain.OrderConfirmation) bool
}

// OrderEvent is published by the order pipeline once an order is recorded.
type OrderEvent struct {
	IdempotencyKey string `json:"idempotency_key"`
	OrderID        any    `json:"order_id"`
	Status         string `json:"status"`
}

// Poller consumes order events and settles checkouts whose outcome the
// session never learned, e.g. after a timed out submission.
type Poller struct {
	reader   Reader
	resolver Resolver
	log      *logger.Logger
	backoff  time.Duration
}

func NewPoller(resolver Resolver, log *logger.Logger, topic string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "storefront-order-events",
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(reader, resolver, log)
}

func NewPollerWithReader(reader Reader, resolver Resolver, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{reader: reader, resolver: resolver, log: log, backoff: time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.handleNext(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("order event not handled", "error", err)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", "error", err)
	}
}

func (p *Poller) handleNext(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		// don't spin on a broker that is down
		select {
		case <-ctx.Done():
		case <-time.After(p.backoff):
		}
		return fmt.Errorf("read message: %w", err)
	}

	event, err := parseEvent(m.Value)
	if err != nil {
		return fmt.Errorf("parse message at offset %d: %w", m.Offset, err)
	}

	conf := domain.OrderConfirmation{OrderID: event.orderID(), Status: domain.OrderStatus(event.Status)}
	if conf.Status == "" {
		conf.Status = domain.OrderStatusPending
	}
	if !p.resolver.ConfirmOrder(event.IdempotencyKey, conf) {
		p.log.Debug("order event for no waiting checkout", "idempotency_key", event.IdempotencyKey)
	}
	return nil
}

func parseEvent(data []byte) (OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return OrderEvent{}, err
	}
	if event.IdempotencyKey == "" {
		return OrderEvent{}, errors.New("missing idempotency_key")
	}
	if event.orderID() == "" {
		return OrderEvent{}, errors.New("missing order_id")
	}
	return event, nil
}

func (e OrderEvent) orderID() string {
	switch v := e.OrderID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	}
	return fmt.Sprint(e.OrderID)
}
