package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Endpoint groups. Each group has its own breaker, so an unhealthy
// analytics service never blocks order submission.
const (
	groupOrders        = "orders"
	groupCatalog       = "catalog"
	groupProfile       = "profile"
	groupStats         = "stats"
	groupNotifications = "notifications"
	groupCalendar      = "calendar"
	groupAnalytics     = "analytics"
)

// API is the backend as seen by one session.
type API struct {
	client *Client
	tokens TokenSource
}

func (a *API) do(ctx context.Context, r request, out any) error {
	token, err := a.tokens.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", r.op(), err)
	}
	return a.client.do(ctx, token, r, out)
}

// SubmitOrder posts the order. The idempotency key travels as a header so a
// resubmission after an unknown outcome cannot create a second order.
func (a *API) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderConfirmation, error) {
	body := orderRequestDTO{
		Items: make([]orderItemDTO, 0, len(order.Items)),
		CustomerInfo: customerInfoDTO{
			Name:          order.Customer.Name,
			Address:       order.Customer.Address,
			PaymentMethod: string(order.Customer.PaymentMethod),
		},
		Total: order.Total,
	}
	for _, item := range order.Items {
		body.Items = append(body.Items, orderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	var resp orderResponseDTO
	err := a.do(ctx, request{
		group:          groupOrders,
		method:         http.MethodPost,
		path:           "orders/",
		body:           body,
		idempotencyKey: order.IdempotencyKey,
	}, &resp)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	return resp.confirmation()
}

// FindOrder looks an order up by the idempotency key it was submitted with.
func (a *API) FindOrder(ctx context.Context, idempotencyKey string) (domain.OrderConfirmation, error) {
	var resp []orderResponseDTO
	err := a.do(ctx, request{
		group:  groupOrders,
		method: http.MethodGet,
		path:   "orders/",
		query:  url.Values{"idempotency_key": {idempotencyKey}},
	}, &resp)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	if len(resp) == 0 {
		return domain.OrderConfirmation{}, fmt.Errorf("order with key %s: %w", idempotencyKey, apperr.ErrNotFound)
	}
	return resp[0].confirmation()
}

func (r orderResponseDTO) confirmation() (domain.OrderConfirmation, error) {
	id := r.OrderID
	if id == "" {
		id = r.ID
	}
	if id == "" {
		return domain.OrderConfirmation{}, &apperr.ServerError{
			Status:  http.StatusOK,
			Code:    "malformed_response",
			Message: "order confirmation without an id",
		}
	}
	status := domain.OrderStatus(r.Status)
	if status == "" {
		status = domain.OrderStatusPending
	}
	return domain.OrderConfirmation{OrderID: id.String(), Status: status}, nil
}

func (a *API) Product(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := a.do(ctx, request{
		group:  groupCatalog,
		method: http.MethodGet,
		path:   "products/" + strconv.FormatInt(id, 10) + "/",
	}, &p)
	return p, err
}

func (a *API) Products(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := a.do(ctx, request{group: groupCatalog, method: http.MethodGet, path: "products/"}, &products)
	return products, err
}

func (a *API) Profile(ctx context.Context) (domain.Profile, error) {
	var p domain.Profile
	err := a.do(ctx, request{group: groupProfile, method: http.MethodGet, path: "user/profile/"}, &p)
	return p, err
}

func (a *API) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := a.do(ctx, request{group: groupStats, method: http.MethodGet, path: "user/stats/"}, &s)
	return s, err
}

func (a *API) RecentOrders(ctx context.Context) ([]OrderDTO, error) {
	var orders []OrderDTO
	err := a.do(ctx, request{group: groupOrders, method: http.MethodGet, path: "orders/recent/"}, &orders)
	return orders, err
}

func (a *API) Notifications(ctx context.Context) ([]NotificationDTO, error) {
	var notifications []NotificationDTO
	err := a.do(ctx, request{group: groupNotifications, method: http.MethodGet, path: "notifications/"}, &notifications)
	return notifications, err
}

func (a *API) Events(ctx context.Context) ([]EventDTO, error) {
	var events []EventDTO
	err := a.do(ctx, request{group: groupCalendar, method: http.MethodGet, path: "calendar/events/"}, &events)
	return events, err
}

func (a *API) Analytics(ctx context.Context) (domain.Analytics, error) {
	var an domain.Analytics
	err := a.do(ctx, request{group: groupAnalytics, method: http.MethodGet, path: "analytics/"}, &an)
	return an, err
}

func (a *API) CreateEvent(ctx context.Context, event EventDTO) (EventDTO, error) {
	var created EventDTO
	err := a.do(ctx, request{
		group:  groupCalendar,
		method: http.MethodPost,
		path:   "calendar/events/",
		body:   event,
	}, &created)
	return created, err
}

func (a *API) MarkNotificationRead(ctx context.Context, id int64) error {
	return a.do(ctx, request{
		group:  groupNotifications,
		method: http.MethodPatch,
		path:   "notifications/" + strconv.FormatInt(id, 10) + "/",
		body:   markReadDTO{Read: true},
	}, nil)
}
