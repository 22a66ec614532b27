package validate

import (
	"fmt"
	"strings"
)

// PeerAddress is a statically configured cluster member: a node name plus the
// address its cluster listener is reachable on.
type PeerAddress struct {
	NodeID  string
	Address NetworkAddress
}

// String renders the peer back into "id@host:port" form.
func (p PeerAddress) String() string {
	return p.NodeID + "@" + p.Address.String()
}

// ParsePeer parses a seed node in "id@host:port" form.
//
// The id must satisfy NodeNameFormat and the address must be routable, so
// 0.0.0.0 and port 0 are rejected: a peer has to be dialable.
func ParsePeer(raw string) (*PeerAddress, error) {
	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return nil, fmt.Errorf("invalid peer '%s': expected format id@host:port", raw)
	}

	id := raw[:at]
	if err := NodeNameFormat(id); err != nil {
		return nil, fmt.Errorf("invalid peer '%s': %w", raw, err)
	}

	addr, err := ParseBindAddress(raw[at+1:])
	if err != nil {
		return nil, fmt.Errorf("invalid peer '%s': %w", raw, err)
	}
	if addr.Host == "0.0.0.0" {
		return nil, fmt.Errorf("invalid peer '%s': 0.0.0.0 is not routable", raw)
	}
	if err := ValidatePortRange(addr.Port); err != nil {
		return nil, fmt.Errorf("invalid peer '%s': port must be between 1-65535", raw)
	}

	return &PeerAddress{NodeID: id, Address: *addr}, nil
}

// ParsePeerList parses every seed and rejects duplicate node ids.
func ParsePeerList(raws []string) ([]PeerAddress, error) {
	seen := make(map[string]bool, len(raws))
	peers := make([]PeerAddress, 0, len(raws))
	for i, raw := range raws {
		peer, err := ParsePeer(raw)
		if err != nil {
			return nil, fmt.Errorf("peer at index %d: %w", i, err)
		}
		if seen[peer.NodeID] {
			return nil, fmt.Errorf("peer at index %d: duplicate node id '%s'", i, peer.NodeID)
		}
		seen[peer.NodeID] = true
		peers = append(peers, *peer)
	}
	return peers, nil
}
