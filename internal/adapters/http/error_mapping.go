package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// resultHTTPStatus maps a pipeline result to an HTTP status code.
// Successful and empty-retrieval runs are 200; a failed run is the
// caller's fault only when the question itself was unusable.
func resultHTTPStatus(result domain.Result) int {
	if result.Status != domain.RunFailure {
		return http.StatusOK
	}
	if result.Failure != nil && result.Failure.Kind == "empty_input" {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
