package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/dashboard"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type DashboardHandler struct {
	timeout time.Duration
}

func NewDashboardHandler(timeout time.Duration) *DashboardHandler {
	return &DashboardHandler{timeout: timeout}
}

type CreateEventRequestDTO struct {
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	snapshot, err := s.Dashboard.FetchAll(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, snapshot)
}

func (h *DashboardHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	var req CreateEventRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// unreadable times surface as missing fields
	start, _ := dashboard.ParseTimestamp(req.Start)
	end, _ := dashboard.ParseTimestamp(req.End)

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	event, err := s.Dashboard.CreateEvent(ctx, domain.EventDraft{
		Title:  req.Title,
		Start:  start,
		End:    end,
		AllDay: req.AllDay,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, event)
}

func (h *DashboardHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_notification_id", "id must be a positive integer")
		return
	}

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	if err := s.Dashboard.MarkNotificationRead(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
