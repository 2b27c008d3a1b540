package openstack

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/pkg/errors"
)

var transientCodes = []int{
	http.StatusConflict,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// classify wraps err so callers can test it with errors.Is against the
// given sentinels: notFound for 404, transient for timeouts, connection
// failures and retryable status codes. Other errors are only annotated.
func classify(err error, notFound, transient error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := errors.Wrapf(err, format, args...).Error()
	if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
		return errors.Wrap(notFound, msg)
	}
	if isTransient(err) {
		return errors.Wrap(transient, msg)
	}
	return errors.Wrapf(err, format, args...)
}

func isTransient(err error) bool {
	for _, code := range transientCodes {
		if gophercloud.ResponseCodeIs(err, code) {
			return true
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}
