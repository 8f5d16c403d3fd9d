package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCredit PaymentMethod = "credit"
	PaymentPayPal PaymentMethod = "paypal"
	PaymentBank   PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCredit, PaymentPayPal, PaymentBank:
		return true
	}
	return false
}

type CustomerInfo struct {
	Name          string        `json:"name"`
	Address       string        `json:"address"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// MissingFields returns the names of required fields that are empty or invalid.
func (c CustomerInfo) MissingFields() []string {
	var fields []string
	if strings.TrimSpace(c.Name) == "" {
		fields = append(fields, "name")
	}
	if strings.TrimSpace(c.Address) == "" {
		fields = append(fields, "address")
	}
	if !c.PaymentMethod.Valid() {
		fields = append(fields, "payment_method")
	}
	return fields
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderConfirmation is what the Order Service answers once it accepted an order.
type OrderConfirmation struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// Order is the snapshot sent to the Order Service. Once accepted it is never mutated.
type Order struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Items          []LineItem      `json:"items"`
	Customer       CustomerInfo    `json:"customer_info"`
	Total          decimal.Decimal `json:"total"`
	OrderID        string          `json:"order_id,omitempty"`
	Status         OrderStatus     `json:"status,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// Accepted returns a copy of o stamped with the server assigned id and status.
func (o Order) Accepted(conf OrderConfirmation) Order {
	items := make([]LineItem, len(o.Items))
	for i, item := range o.Items {
		items[i] = item.Clone()
	}
	o.Items = items
	o.OrderID = conf.OrderID
	o.Status = conf.Status
	return o
}
