package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 4 << 20 // 4MB

// TokenSource supplies the bearer credential of the active session.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the REST backend. It is shared by all sessions; per-session
// calls go through API, which attaches the session's bearer token.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *logger.Logger

	breakerFailures uint32
	breakerTimeout  time.Duration
	mu              sync.Mutex
	breakers        map[string]*gobreaker.CircuitBreaker[[]byte]
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// WithBreaker sets how many consecutive failures open an endpoint group's
// breaker and how long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(cl *Client) {
		cl.breakerFailures = failures
		cl.breakerTimeout = openFor
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		log:             logger.Nop(),
		breakerFailures: 5,
		breakerTimeout:  30 * time.Second,
		breakers:        make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ForSession binds the client to one session's credentials.
func (c *Client) ForSession(tokens TokenSource) *API {
	return &API{client: c, tokens: tokens}
}

func (c *Client) breaker(group string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[group]; ok {
		return cb
	}
	failures := c.breakerFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        group,
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("backend breaker state changed", "group", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[group] = cb
	return cb
}

// countsAsSuccess keeps auth and client errors from tripping a breaker:
// only transport failures and 5xx answers say the endpoint is unhealthy.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *apperr.ServerError
	if errors.As(err, &se) {
		return se.Status < http.StatusInternalServerError
	}
	return !apperr.IsRetryable(err)
}

type request struct {
	group          string
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
}

func (r request) op() string {
	return r.method + " " + r.path
}

func (c *Client) do(ctx context.Context, token string, r request, out any) error {
	payload, err := c.breaker(r.group).Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, token, r)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperr.Network(r.op(), err)
		}
		return err
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.op(), &apperr.ServerError{
			Status:  http.StatusOK,
			Code:    "malformed_response",
			Message: err.Error(),
		})
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, token string, r request) ([]byte, error) {
	ref := &url.URL{Path: r.path}
	if len(r.query) > 0 {
		ref.RawQuery = r.query.Encode()
	}
	target := c.baseURL.ResolveReference(ref)

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", r.op(), err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op(), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network(r.op(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperr.Network(r.op(), err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, classify(r.op(), resp.StatusCode, data)
}
