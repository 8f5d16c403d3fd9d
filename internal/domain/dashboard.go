package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Profile struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	IsFarmer      bool   `json:"is_farmer"`
	FarmName      string `json:"farm_name,omitempty"`
	Location      string `json:"location,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
}

type Stats struct {
	TotalOrders   int             `json:"total_orders"`
	TotalProducts int             `json:"total_products"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// Product is a catalog record; Quantity is the stock on hand.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category,omitempty"`
}

// LineItem turns the record into a cart entry with price and stock locked in.
func (p Product) LineItem() LineItem {
	return LineItem{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		AvailableStock: Stock(p.Quantity),
	}
}

type OrderSummary struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type Notification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Type      string    `json:"notification_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
	// Pending marks an optimistic entry the Calendar Service has not confirmed yet.
	Pending bool `json:"pending,omitempty"`
}

// EventDraft is a calendar event proposed by the user.
type EventDraft struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

func (d EventDraft) MissingFields() []string {
	var fields []string
	if d.Title == "" {
		fields = append(fields, "title")
	}
	if d.Start.IsZero() {
		fields = append(fields, "start")
	}
	if d.End.IsZero() || d.End.Before(d.Start) {
		fields = append(fields, "end")
	}
	return fields
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type Analytics struct {
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`
	OrderStatus    []StatusCount    `json:"order_status"`
}

const (
	SectionProfile       = "profile"
	SectionStats         = "stats"
	SectionRecentOrders  = "recent_orders"
	SectionProducts      = "products"
	SectionNotifications = "notifications"
	SectionEvents        = "events"
	SectionAnalytics     = "analytics"
)

// DashboardSnapshot is one consistent view assembled from all dashboard sources.
// Sections whose source failed hold their empty default and are listed in Unavailable.
type DashboardSnapshot struct {
	Profile       *Profile       `json:"profile"`
	Stats         *Stats         `json:"stats"`
	RecentOrders  []OrderSummary `json:"recent_orders"`
	Products      []Product      `json:"products"`
	Notifications []Notification `json:"notifications"`
	Events        []Event        `json:"events"`
	Analytics     Analytics      `json:"analytics"`
	UnreadCount   int            `json:"unread_count"`
	Unavailable   []string       `json:"unavailable,omitempty"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

func EmptyDashboard() *DashboardSnapshot {
	return &DashboardSnapshot{
		RecentOrders:  []OrderSummary{},
		Products:      []Product{},
		Notifications: []Notification{},
		Events:        []Event{},
		Analytics: Analytics{
			MonthlyRevenue: []MonthlyRevenue{},
			OrderStatus:    []StatusCount{},
		},
	}
}

// CountUnread recomputes the number of unread notifications.
func (s *DashboardSnapshot) CountUnread() int {
	n := 0
	for _, notification := range s.Notifications {
		if !notification.Read {
			n++
		}
	}
	return n
}

func (s *DashboardSnapshot) Clone() *DashboardSnapshot {
	c := *s
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	if s.Stats != nil {
		st := *s.Stats
		c.Stats = &st
	}
	c.RecentOrders = append([]OrderSummary{}, s.RecentOrders...)
	c.Products = append([]Product{}, s.Products...)
	c.Notifications = append([]Notification{}, s.Notifications...)
	c.Events = append([]Event{}, s.Events...)
	c.Analytics = Analytics{
		MonthlyRevenue: append([]MonthlyRevenue{}, s.Analytics.MonthlyRevenue...),
		OrderStatus:    append([]StatusCount{}, s.Analytics.OrderStatus...),
	}
	if s.Unavailable != nil {
		c.Unavailable = append([]string{}, s.Unavailable...)
	}
	return &c
}
