package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrAlreadySubmitting = errors.New("checkout submission already in progress")
	ErrOutcomePending    = errors.New("checkout outcome is not known yet")
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")
	ErrSessionExpired    = errors.New("session expired")
	ErrNotFound          = errors.New("not found")
)

// ValidationError lists the input fields that are missing or invalid.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: invalid fields [%s]", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) HasField(name string) bool {
	for _, f := range e.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// ServerError is a non-auth 4xx/5xx answer from a backend service.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Is lets callers match ErrServer, and ErrNotFound for 404 answers.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrServer:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// NetworkError wraps transport failures and timeouts. It is always retryable.
type NetworkError struct {
	Op  string
	Err error
}

func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// IsRetryable reports whether err is transient and the same request may be sent again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
