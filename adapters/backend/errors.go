package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/satriahrh/schedula/domain/repositories"
)

// ErrInvalidResponse is returned when a 2xx body does not have the expected shape
var ErrInvalidResponse = errors.New("invalid response format")

// APIError represents a non-2xx answer from the backend
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error [%d] at %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Is lets a 401 match repositories.ErrUnauthorized and any non-2xx status
// match repositories.ErrRejected
func (e *APIError) Is(target error) bool {
	switch target {
	case repositories.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case repositories.ErrRejected:
		return e.StatusCode < 200 || e.StatusCode > 299
	}
	_, ok := target.(*APIError)
	return ok
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}
