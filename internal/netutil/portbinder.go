// Package netutil holds listener pre-binding and dial error classification
// for the cluster transport and the HTTP API.
//
// latticed binds both listeners before anything else starts and hands the
// open sockets to the connection manager and the API server, so the port a
// node advertises in HELLO is the port it actually holds.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// DefaultFallbackAttempts bounds the upward port search
const DefaultFallbackAttempts = 100

// AddressInUseError reports a busy port while keeping the syscall error for
// errors.Is checks.
type AddressInUseError struct {
	Port    int
	Address string
	Err     error
}

func (e *AddressInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use on %s", e.Port, e.Address)
}

func (e *AddressInUseError) Unwrap() error {
	return e.Err
}

// PortBinder opens TCP listeners and keeps them open until a service takes
// ownership.
type PortBinder struct{}

func NewPortBinder() *PortBinder {
	return &PortBinder{}
}

// BindTCP listens on address:port over IPv4. The port is reserved from the
// moment this returns until the listener is closed.
func (pb *PortBinder) BindTCP(address string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		if IsAddressInUseError(err) {
			return nil, &AddressInUseError{Port: port, Address: address, Err: err}
		}
		return nil, fmt.Errorf("failed to bind TCP to %s: %w", addr, err)
	}
	return listener, nil
}

// BindTCPWithFallbackAndLimit tries preferredPort and then each following
// port, at most maxAttempts in total, skipping only ports that are in use.
// It returns the listener and the port it got.
func (pb *PortBinder) BindTCPWithFallbackAndLimit(address string, preferredPort, maxAttempts int) (net.Listener, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultFallbackAttempts
	}

	for port := preferredPort; port < preferredPort+maxAttempts && port <= 65535; port++ {
		listener, err := pb.BindTCP(address, port)
		if err != nil {
			var addrInUseErr *AddressInUseError
			if errors.As(err, &addrInUseErr) {
				continue
			}
			return nil, 0, fmt.Errorf("failed to bind TCP starting from port %d: %w", preferredPort, err)
		}
		return listener, port, nil
	}

	return nil, 0, fmt.Errorf("no available TCP port found in range %d-%d on %s",
		preferredPort, preferredPort+maxAttempts-1, address)
}

// GetListenerPort returns the port a TCP listener is bound to, which is how
// a node bound to port 0 learns what to advertise.
func (pb *PortBinder) GetListenerPort(listener net.Listener) (int, error) {
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener is not a TCP listener: %T", listener.Addr())
	}
	return tcpAddr.Port, nil
}
