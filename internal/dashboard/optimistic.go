package dashboard

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const pendingEventPrefix = "pending-"

// pendingMutation is a local change applied ahead of server confirmation.
// Exactly one of commit or rollback runs once the server answers. reapply
// carries the change over to a snapshot fetched while it was pending.
type pendingMutation struct {
	id       string
	reapply  func(s *domain.DashboardSnapshot)
	commit   func(s *domain.DashboardSnapshot)
	rollback func(s *domain.DashboardSnapshot)
}

// apply runs change on the latest snapshot and records the mutation as
// pending. Writes before the first fetch apply to an empty snapshot.
func (a *Aggregator) apply(change func(s *domain.DashboardSnapshot) (*pendingMutation, error)) (*pendingMutation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		a.latest = domain.EmptyDashboard()
	}
	m, err := change(a.latest)
	if err != nil || m == nil {
		return nil, err
	}
	a.pending[m.id] = m
	return m, nil
}

// settle commits the mutation on success and restores its rollback value on
// failure. A fetch that replaced the snapshot in between gets the same
// treatment, so neither outcome leaves a phantom entry behind.
func (a *Aggregator) settle(m *pendingMutation, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, m.id)
	if err != nil {
		m.rollback(a.latest)
	} else if m.commit != nil {
		m.commit(a.latest)
	}
	a.latest.UnreadCount = a.latest.CountUnread()
}

// reapplyPending replays every pending change onto a freshly fetched
// snapshot. Must hold a.mu.
func (a *Aggregator) reapplyPending(s *domain.DashboardSnapshot) {
	for _, m := range a.pending {
		if m.reapply != nil {
			m.reapply(s)
		}
	}
	s.UnreadCount = s.CountUnread()
}

// PendingCount is the number of optimistic changes awaiting an answer.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// CreateEvent shows the draft immediately under a temporary id and replaces
// it with the server's entry once the Calendar Service confirms it.
func (a *Aggregator) CreateEvent(ctx context.Context, draft domain.EventDraft) (domain.Event, error) {
	if fields := draft.MissingFields(); len(fields) > 0 {
		return domain.Event{}, apperr.NewValidationError(fields...)
	}

	tempID := pendingEventPrefix + uuid.NewString()
	optimistic := domain.Event{
		ID:      tempID,
		Title:   draft.Title,
		Start:   draft.Start.UTC(),
		End:     draft.End.UTC(),
		AllDay:  draft.AllDay,
		Pending: true,
	}
	var confirmed domain.Event
	m, err := a.apply(func(s *domain.DashboardSnapshot) (*pendingMutation, error) {
		s.Events = append(s.Events, optimistic)
		return &pendingMutation{
			id: tempID,
			reapply: func(s *domain.DashboardSnapshot) {
				s.Events = append(removeEvent(s.Events, tempID), optimistic)
			},
			commit: func(s *domain.DashboardSnapshot) {
				s.Events = removeEvent(s.Events, tempID)
				s.Events = removeEvent(s.Events, confirmed.ID)
				s.Events = append(s.Events, confirmed)
			},
			rollback: func(s *domain.DashboardSnapshot) {
				s.Events = removeEvent(s.Events, tempID)
			},
		}, nil
	})
	if err != nil {
		return domain.Event{}, err
	}

	created, err := a.source.CreateEvent(context.WithoutCancel(ctx), backend.EventDTO{
		Title:  draft.Title,
		Start:  FormatTimestamp(draft.Start),
		End:    FormatTimestamp(draft.End),
		AllDay: draft.AllDay,
	})
	if err == nil {
		confirmed, err = canonicalEvent(created, draft)
	}
	a.settle(m, err)
	if err != nil {
		a.log.WithContext(ctx).Warn("calendar event not created", "title", draft.Title, "error", err)
		return domain.Event{}, err
	}
	return confirmed, nil
}

// canonicalEvent prefers the server's times and falls back to the draft's
// when the server echoes them in a shape that cannot be read.
func canonicalEvent(dto backend.EventDTO, draft domain.EventDraft) (domain.Event, error) {
	if dto.ID == "" {
		return domain.Event{}, fmt.Errorf("create event: %w", &apperr.ServerError{
			Status:  200,
			Code:    "malformed_response",
			Message: "created event without an id",
		})
	}
	event, err := normalizeEvent(dto)
	if err != nil {
		event = domain.Event{
			ID:     dto.ID.String(),
			Title:  dto.Title,
			Start:  draft.Start.UTC(),
			End:    draft.End.UTC(),
			AllDay: dto.AllDay,
		}
	}
	if event.Title == "" {
		event.Title = draft.Title
	}
	return event, nil
}

func removeEvent(events []domain.Event, id string) []domain.Event {
	out := events[:0]
	for _, e := range events {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// MarkNotificationRead flips the read flag at once and reverts it if the
// Notification Service rejects the update. Already read is a no-op.
func (a *Aggregator) MarkNotificationRead(ctx context.Context, id int64) error {
	key := fmt.Sprintf("notification-%d", id)
	m, err := a.apply(func(s *domain.DashboardSnapshot) (*pendingMutation, error) {
		idx := findNotification(s.Notifications, id)
		if idx < 0 {
			return nil, fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound)
		}
		if _, busy := a.pending[key]; busy {
			// the update already in flight decides the outcome
			s.Notifications[idx].Read = true
			s.UnreadCount = s.CountUnread()
			return nil, nil
		}
		if s.Notifications[idx].Read {
			return nil, nil
		}
		previous := s.Notifications[idx].Read
		s.Notifications[idx].Read = true
		s.UnreadCount = s.CountUnread()
		return &pendingMutation{
			id: key,
			reapply: func(s *domain.DashboardSnapshot) {
				if i := findNotification(s.Notifications, id); i >= 0 {
					s.Notifications[i].Read = true
				}
			},
			rollback: func(s *domain.DashboardSnapshot) {
				if i := findNotification(s.Notifications, id); i >= 0 {
					s.Notifications[i].Read = previous
				}
			},
		}, nil
	})
	if err != nil || m == nil {
		return err
	}

	err = a.source.MarkNotificationRead(context.WithoutCancel(ctx), id)
	a.settle(m, err)
	if err != nil {
		a.log.WithContext(ctx).Warn("notification not marked read", "notification_id", id, "error", err)
	}
	return err
}

func findNotification(notifications []domain.Notification, id int64) int {
	for i, n := range notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}
