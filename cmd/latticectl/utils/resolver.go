// Package utils provides utility functions for the latticectl CLI.
package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/concave-dev/lattice/internal/logging"
)

// NodeLike represents anything with an ID for resolution
type NodeLike interface {
	GetID() string
}

// ResolveNodeIdentifier resolves identifier against nodes. An exact id wins;
// otherwise a unique prefix is accepted. An identifier that matches nothing
// is returned unchanged so the API can report it.
func ResolveNodeIdentifier[T NodeLike](nodes []T, identifier string) (string, error) {
	var matches []string
	for _, node := range nodes {
		id := node.GetID()
		if id == identifier {
			return id, nil
		}
		if strings.HasPrefix(id, identifier) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return identifier, nil
	case 1:
		logging.Info("Resolved '%s' to node '%s'", identifier, matches[0])
		return matches[0], nil
	default:
		sort.Strings(matches)
		logging.Error("Prefix '%s' is not unique, matches multiple nodes:", identifier)
		for _, id := range matches {
			logging.Error("  %s", id)
		}
		return "", fmt.Errorf("node prefix '%s' matches %d nodes", identifier, len(matches))
	}
}
