package netutil

import (
	"errors"
	"net"
	"syscall"
)

// IsAddressInUseError reports whether err is EADDRINUSE from a bind.
func IsAddressInUseError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.EADDRINUSE)
	}
	return false
}

// IsConnectionRefusedError reports whether err is ECONNREFUSED, which for the
// custodian usually means the peer has not started yet.
func IsConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED)
	}
	return false
}

// IsTimeoutError reports whether err is a network timeout, such as a dial
// that exceeded its deadline against a silently dropping host.
func IsTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DescribeDialError shortens common dial failures for log lines.
func DescribeDialError(err error) string {
	switch {
	case IsConnectionRefusedError(err):
		return "connection refused"
	case IsTimeoutError(err):
		return "timed out"
	default:
		return err.Error()
	}
}
