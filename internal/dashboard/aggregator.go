package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// sourceCount is the fixed width of the fan-out: one request per section.
const sourceCount = 7

// Source is the set of backend endpoints the dashboard reads and writes.
type Source interface {
	Profile(ctx context.Context) (domain.Profile, error)
	Stats(ctx context.Context) (domain.Stats, error)
	RecentOrders(ctx context.Context) ([]backend.OrderDTO, error)
	Products(ctx context.Context) ([]domain.Product, error)
	Notifications(ctx context.Context) ([]backend.NotificationDTO, error)
	Events(ctx context.Context) ([]backend.EventDTO, error)
	Analytics(ctx context.Context) (domain.Analytics, error)

	CreateEvent(ctx context.Context, event backend.EventDTO) (backend.EventDTO, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Recorder is told about every section that could not be loaded.
type Recorder interface {
	SectionFailed(section string)
}

type Aggregator struct {
	source   Source
	log      *logger.Logger
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	latest  *domain.DashboardSnapshot
	pending map[string]*pendingMutation
}

type Option func(*Aggregator)

func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		log:     logger.Nop(),
		now:     time.Now,
		pending: make(map[string]*pendingMutation),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// sections holds the settled result of every source of one fetch.
type sections struct {
	profile       Section[domain.Profile]
	stats         Section[domain.Stats]
	recentOrders  Section[[]backend.OrderDTO]
	products      Section[[]domain.Product]
	notifications Section[[]backend.NotificationDTO]
	events        Section[[]backend.EventDTO]
	analytics     Section[domain.Analytics]
}

type fetchRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	expired atomic.Bool
}

// load runs one source call on the group and settles it into out. It never
// returns an error to the group, so one failure cannot cut the others short;
// only an expired session cancels the remaining requests.
func load[T any](run *fetchRun, name string, out *Section[T], call func(context.Context) (T, error)) {
	run.group.Go(func() error {
		value, err := call(run.ctx)
		if err != nil {
			if errors.Is(err, apperr.ErrSessionExpired) {
				run.expired.Store(true)
				run.cancel()
			}
			*out = Unavailable[T](name, err)
			return nil
		}
		*out = Available(name, value)
		return nil
	})
}

// FetchAll requests all seven sections concurrently and waits for every one
// to settle before assembling the snapshot. Failed sections get their empty
// default; an unauthorized answer from any source fails the whole call with
// ErrSessionExpired.
//
// The fetch is not tied to ctx: if ctx ends first FetchAll returns ctx.Err()
// and the fetch still completes, updating Snapshot.
func (a *Aggregator) FetchAll(ctx context.Context) (*domain.DashboardSnapshot, error) {
	type result struct {
		snapshot *domain.DashboardSnapshot
		err      error
	}
	done := make(chan result, 1)
	go func() {
		snapshot, err := a.fetch(context.WithoutCancel(ctx))
		done <- result{snapshot, err}
	}()

	select {
	case r := <-done:
		return r.snapshot, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Aggregator) fetch(parent context.Context) (*domain.DashboardSnapshot, error) {
	ctx, span := otel.Tracer("storefront/dashboard").Start(parent, "dashboard.fetch_all")
	defer span.End()
	log := a.log.WithContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := &fetchRun{ctx: runCtx, cancel: cancel, group: &errgroup.Group{}}
	run.group.SetLimit(sourceCount)

	var s sections
	load(run, domain.SectionProfile, &s.profile, a.source.Profile)
	load(run, domain.SectionStats, &s.stats, a.source.Stats)
	load(run, domain.SectionRecentOrders, &s.recentOrders, a.source.RecentOrders)
	load(run, domain.SectionProducts, &s.products, a.source.Products)
	load(run, domain.SectionNotifications, &s.notifications, a.source.Notifications)
	load(run, domain.SectionEvents, &s.events, a.source.Events)
	load(run, domain.SectionAnalytics, &s.analytics, a.source.Analytics)
	_ = run.group.Wait()

	if run.expired.Load() {
		span.SetStatus(codes.Error, apperr.ErrSessionExpired.Error())
		log.Warn("dashboard fetch aborted, session expired")
		return nil, fmt.Errorf("dashboard: %w", apperr.ErrSessionExpired)
	}

	snapshot := a.assemble(s, log)
	span.SetAttributes(attribute.StringSlice("dashboard.unavailable", snapshot.Unavailable))

	a.mu.Lock()
	a.reapplyPending(snapshot)
	a.latest = snapshot
	snapshot = snapshot.Clone()
	a.mu.Unlock()

	return snapshot, nil
}

// assemble substitutes defaults for failed sections and normalizes the rest.
func (a *Aggregator) assemble(s sections, log *logger.Logger) *domain.DashboardSnapshot {
	snapshot := domain.EmptyDashboard()
	snapshot.FetchedAt = a.now().UTC()

	failed := func(name string, err error) {
		snapshot.Unavailable = append(snapshot.Unavailable, name)
		log.Warn("dashboard section unavailable", "section", name, "error", err)
		if a.recorder != nil {
			a.recorder.SectionFailed(name)
		}
	}

	if profile, ok := s.profile.Value(); ok {
		snapshot.Profile = &profile
	} else {
		failed(s.profile.Name, s.profile.Err())
	}
	if stats, ok := s.stats.Value(); ok {
		snapshot.Stats = &stats
	} else {
		failed(s.stats.Name, s.stats.Err())
	}
	if !s.recentOrders.OK() {
		failed(s.recentOrders.Name, s.recentOrders.Err())
	}
	snapshot.RecentOrders = normalizeOrders(s.recentOrders.OrDefault(nil))

	if !s.products.OK() {
		failed(s.products.Name, s.products.Err())
	}
	if products := s.products.OrDefault(nil); products != nil {
		snapshot.Products = products
	}

	if !s.notifications.OK() {
		failed(s.notifications.Name, s.notifications.Err())
	}
	snapshot.Notifications = normalizeNotifications(s.notifications.OrDefault(nil))

	if !s.events.OK() {
		failed(s.events.Name, s.events.Err())
	}
	events, skipped := normalizeEvents(s.events.OrDefault(nil))
	for _, err := range skipped {
		log.Warn("skipping calendar event", "error", err)
	}
	snapshot.Events = events

	if !s.analytics.OK() {
		failed(s.analytics.Name, s.analytics.Err())
	}
	snapshot.Analytics = normalizeAnalytics(s.analytics.OrDefault(domain.Analytics{}))

	snapshot.UnreadCount = snapshot.CountUnread()
	return snapshot
}

// Snapshot returns a copy of the latest assembled snapshot, including any
// optimistic changes not yet confirmed.
func (a *Aggregator) Snapshot() (*domain.DashboardSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return nil, false
	}
	return a.latest.Clone(), true
}
