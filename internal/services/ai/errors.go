package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a failed call to the AI provider. StatusCode carries the
// HTTP-equivalent status so callers can tell a provider 429 from the rest.
type ProviderError struct {
	StatusCode int
	Operation  string
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a provider-side rate limit.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}
