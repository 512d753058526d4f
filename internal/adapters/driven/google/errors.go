package google

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// wrapError converts a Google client error into a domain error. A 429 also
// pushes the limiter back by the response's Retry-After.
func wrapError(err error, limiter *RateLimiter) error {
	if err == nil {
		return nil
	}

	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests && limiter != nil {
			limiter.RecordRateLimitError(parseRetryAfter(gerr.Header))
		}
		return domain.NewProviderError(gerr.Code, errorBody(gerr))
	}

	// Cancellation is the caller's decision, not a network failure.
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewTransportError(err)
}

func errorBody(gerr *googleapi.Error) string {
	if body := strings.TrimSpace(gerr.Body); body != "" {
		return body
	}
	return gerr.Message
}
