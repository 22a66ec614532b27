package netutil

import (
	"errors"
	"net"
	"testing"
	"time"
)

// TestPortBinder_BindTCPWithFallbackAndLimit tests that a busy port falls through to the next one
func TestPortBinder_BindTCPWithFallbackAndLimit(t *testing.T) {
	pb := NewPortBinder()

	first, err := pb.BindTCP("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("BindTCP() error = %v", err)
	}
	defer first.Close()

	busy, err := pb.GetListenerPort(first)
	if err != nil {
		t.Fatalf("GetListenerPort() error = %v", err)
	}

	_, err = pb.BindTCP("127.0.0.1", busy)
	var inUse *AddressInUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("BindTCP() on busy port error = %v, want AddressInUseError", err)
	}
	if !IsAddressInUseError(err) {
		t.Errorf("IsAddressInUseError() = false, want true")
	}

	second, port, err := pb.BindTCPWithFallbackAndLimit("127.0.0.1", busy, 10)
	if err != nil {
		t.Skipf("no free port near %d: %v", busy, err)
	}
	defer second.Close()
	if port == busy {
		t.Errorf("BindTCPWithFallbackAndLimit() port = %d, want a different port", port)
	}
}

// TestIsConnectionRefusedError tests dial error classification
func TestIsConnectionRefusedError(t *testing.T) {
	pb := NewPortBinder()
	l, err := pb.BindTCP("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("BindTCP() error = %v", err)
	}
	port, _ := pb.GetListenerPort(l)
	l.Close()

	_, err = net.DialTimeout("tcp4", l.Addr().String(), time.Second)
	if err == nil {
		t.Skipf("port %d unexpectedly accepted a connection", port)
	}
	if !IsConnectionRefusedError(err) {
		t.Errorf("IsConnectionRefusedError(%v) = false, want true", err)
	}
	if got := DescribeDialError(err); got != "connection refused" {
		t.Errorf("DescribeDialError() = %q, want %q", got, "connection refused")
	}
	if IsTimeoutError(err) {
		t.Errorf("IsTimeoutError(%v) = true, want false", err)
	}
}
