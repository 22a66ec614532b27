package wire

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Identity is what a node announces in its HELLO frame.
type Identity struct {
	ID   string
	IP   string
	Port int
}

// Address returns the ip:port the node listens on, with IPv6 hosts
// bracketed.
func (i Identity) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// EncodeHello builds the HELLO message. The payload is "id:ip:port" where
// an IPv6 ip is written in brackets, e.g. "node-a:[::1]:4740".
func EncodeHello(id Identity) Message {
	payload := id.ID + ":" + id.Address()
	return NewMessage(Hello, []byte(payload))
}

// DecodeHello parses a HELLO payload. The port and ip are taken from the
// right so node ids may themselves contain colons; a bracketed ip may
// contain colons too.
func DecodeHello(payload []byte) (Identity, error) {
	s := string(payload)

	portIdx := strings.LastIndexByte(s, ':')
	if portIdx <= 0 {
		return Identity{}, fmt.Errorf("malformed hello %q: missing port", s)
	}
	port, err := strconv.Atoi(s[portIdx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return Identity{}, fmt.Errorf("malformed hello %q: invalid port", s)
	}

	rest := s[:portIdx]
	var id, ip string
	if strings.HasSuffix(rest, "]") {
		open := strings.LastIndexByte(rest, '[')
		if open <= 1 || rest[open-1] != ':' {
			return Identity{}, fmt.Errorf("malformed hello %q: bad bracketed ip", s)
		}
		id, ip = rest[:open-1], rest[open+1:len(rest)-1]
	} else {
		ipIdx := strings.LastIndexByte(rest, ':')
		if ipIdx <= 0 {
			return Identity{}, fmt.Errorf("malformed hello %q: missing id or ip", s)
		}
		id, ip = rest[:ipIdx], rest[ipIdx+1:]
	}
	if id == "" || ip == "" {
		return Identity{}, fmt.Errorf("malformed hello %q: missing id or ip", s)
	}

	return Identity{ID: id, IP: ip, Port: port}, nil
}

// EncodeGoodbye builds the GOODBYE message sent on graceful removal.
func EncodeGoodbye(localID string) Message {
	return NewMessage(Goodbye, []byte(localID))
}
