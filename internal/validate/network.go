package validate

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NetworkAddress is a validated host:port pair. Host must be a literal IP;
// lattice never resolves names for cluster or API endpoints.
type NetworkAddress struct {
	Host string `validate:"required,ip"`
	Port int    `validate:"required,min=0,max=65535"`
}

func (na NetworkAddress) String() string {
	return net.JoinHostPort(na.Host, strconv.Itoa(na.Port))
}

// ParseBindAddress parses "host:port". Port 0 is rejected by the required
// tag; callers that want an ephemeral port pick one explicitly.
func ParseBindAddress(addr string) (*NetworkAddress, error) {
	if addr == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address format '%s': %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port '%s': %w", portStr, err)
	}

	netAddr := &NetworkAddress{Host: host, Port: port}
	if err := validate.Struct(netAddr); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return netAddr, nil
}

// ValidateField checks one value against validator tags,
// e.g. ValidateField(ip, "required,ip").
func ValidateField(value any, tag string) error {
	return validate.Var(value, tag)
}
