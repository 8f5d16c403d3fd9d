package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrBadTimestamp = errors.New("unrecognized timestamp")

// Layouts the backend is known to emit. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp returns the canonical UTC instant for s.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// FormatTimestamp is the representation sent back to the backend.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func normalizeEvent(dto backend.EventDTO) (domain.Event, error) {
	start, err := ParseTimestamp(dto.Start)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s start: %w", dto.ID, err)
	}
	end, err := ParseTimestamp(dto.End)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s end: %w", dto.ID, err)
	}
	return domain.Event{
		ID:     dto.ID.String(),
		Title:  dto.Title,
		Start:  start,
		End:    end,
		AllDay: dto.AllDay,
	}, nil
}

// normalizeEvents drops events whose times cannot be read; a calendar entry
// without a position is useless to the view.
func normalizeEvents(dtos []backend.EventDTO) ([]domain.Event, []error) {
	events := make([]domain.Event, 0, len(dtos))
	var skipped []error
	for _, dto := range dtos {
		event, err := normalizeEvent(dto)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		events = append(events, event)
	}
	return events, skipped
}

// normalizeNotifications keeps notifications with an unreadable createdAt,
// with a zero time, so unread counts stay correct.
func normalizeNotifications(dtos []backend.NotificationDTO) []domain.Notification {
	notifications := make([]domain.Notification, 0, len(dtos))
	for _, dto := range dtos {
		created, _ := ParseTimestamp(dto.CreatedAt)
		notifications = append(notifications, domain.Notification{
			ID:        dto.ID,
			Message:   dto.Message,
			Read:      dto.Read,
			Type:      dto.Type,
			CreatedAt: created,
		})
	}
	return notifications
}

func normalizeOrders(dtos []backend.OrderDTO) []domain.OrderSummary {
	orders := make([]domain.OrderSummary, 0, len(dtos))
	for _, dto := range dtos {
		created, _ := ParseTimestamp(dto.CreatedAt)
		orders = append(orders, domain.OrderSummary{
			ID:        dto.ID.String(),
			Status:    dto.Status,
			Total:     dto.Total,
			CreatedAt: created,
		})
	}
	return orders
}

func normalizeAnalytics(a domain.Analytics) domain.Analytics {
	if a.MonthlyRevenue == nil {
		a.MonthlyRevenue = []domain.MonthlyRevenue{}
	}
	if a.OrderStatus == nil {
		a.OrderStatus = []domain.StatusCount{}
	}
	return a
}
