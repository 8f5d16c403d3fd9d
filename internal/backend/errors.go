package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

// errorBody covers the structured {code, message} contract and the
// {detail} / {error} shapes the REST framework produces on its own.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Error   string `json:"error"`
}

// classify maps a non-2xx answer onto the error taxonomy. Only 401 means the
// session is no longer valid; 403 is a permission answer for a live session.
func classify(op string, status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", op, apperr.ErrSessionExpired)
	}

	se := &apperr.ServerError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		se.Code = eb.Code
		se.Message = firstNonEmpty(eb.Message, eb.Detail, eb.Error)
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(body))
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	return fmt.Errorf("%s: %w", op, se)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
