package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FlexID accepts ids sent either as JSON numbers or strings.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string {
	return string(id)
}

// Timestamps are kept raw here; the dashboard normalizes them.

type OrderDTO struct {
	ID        FlexID          `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt string          `json:"created_at"`
}

type NotificationDTO struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	Type      string `json:"notification_type"`
	CreatedAt string `json:"created_at"`
}

type EventDTO struct {
	ID     FlexID `json:"id,omitempty"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
}

type orderItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type customerInfoDTO struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	PaymentMethod string `json:"payment_method"`
}

type orderRequestDTO struct {
	Items        []orderItemDTO  `json:"items"`
	CustomerInfo customerInfoDTO `json:"customer_info"`
	Total        decimal.Decimal `json:"total"`
}

type orderResponseDTO struct {
	OrderID FlexID `json:"order_id"`
	ID      FlexID `json:"id"`
	Status  string `json:"status"`
}

type markReadDTO struct {
	Read bool `json:"read"`
}
