package transport

import (
	"context"
	"errors"
	"net"
	"strings"

	"pitboard/internal/models"
)

// Classify maps an upstream error onto the failure taxonomy. Typed AppErrors
// pass through; transport-level failures (net errors, timeouts, the literal
// "Network Error" message some upstreams emit) become NETWORK_ERROR; anything
// else is UNKNOWN_ERROR.
func Classify(err error) *models.AppError {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if isNetworkError(err) {
		return models.NewNetworkError(err)
	}

	return models.NewUnknownError(err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(err.Error(), "Network Error")
}
