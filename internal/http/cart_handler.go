package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	timeout time.Duration
}

func NewCartHandler(timeout time.Duration) *CartHandler {
	return &CartHandler{timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items     []domain.LineItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

type AppliedDTO struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Quantity  int   `json:"quantity"`
	Clamped   bool  `json:"clamped"`
	Removed   bool  `json:"removed,omitempty"`
}

type MutationResponseDTO struct {
	Cart    CartResponseDTO `json:"cart"`
	Applied *AppliedDTO     `json:"applied,omitempty"`
	Changes []AppliedDTO    `json:"changes,omitempty"`
}

func cartView(s *session.Session) CartResponseDTO {
	snapshot := s.Cart.Snapshot()
	return CartResponseDTO{
		Items:     snapshot.Items,
		Total:     snapshot.Total,
		ItemCount: snapshot.ItemCount(),
	}
}

func applied(res cart.AddResult) *AppliedDTO {
	return &AppliedDTO{
		ProductID: res.ProductID,
		Requested: res.Requested,
		Quantity:  res.Quantity,
		Clamped:   res.Clamped,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, cartView(sessionFromContext(r.Context())))
}

// AddItem looks the product up in the catalog and adds it with live price and stock.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	res, err := s.AddProduct(ctx, req.ProductID, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, MutationResponseDTO{Cart: cartView(s), Applied: applied(res)})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := s.Cart.UpdateQuantity(productID, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, MutationResponseDTO{Cart: cartView(s), Applied: applied(res)})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	s.Cart.RemoveItem(productID)
	respondJSON(w, r, http.StatusOK, MutationResponseDTO{Cart: cartView(s)})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	s.Cart.Clear()
	respondJSON(w, r, http.StatusOK, MutationResponseDTO{Cart: cartView(s)})
}

// RefreshStock re-reads stock for every entry and reports what was reduced.
func (h *CartHandler) RefreshStock(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())

	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()
	changes, err := s.RefreshStock(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := MutationResponseDTO{Changes: make([]AppliedDTO, 0, len(changes))}
	for _, c := range changes {
		dto := applied(c.AddResult)
		dto.Removed = c.Removed
		resp.Changes = append(resp.Changes, *dto)
	}
	resp.Cart = cartView(s)
	respondJSON(w, r, http.StatusOK, resp)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
