// Package validate holds the input checks shared by latticed, latticectl and
// the API: node ids, bind addresses, seed peers and config bounds.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var nodeNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NodeNameFormat checks a node id. Ids travel in HELLO frames and leadership
// events, so they are restricted to [a-z0-9_-] and must start and end with a
// letter or digit.
func NodeNameFormat(name string) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if !nodeNamePattern.MatchString(name) {
		return fmt.Errorf("node name '%s' must contain only lowercase letters [a-z], numbers [0-9], hyphens (-), and underscores (_)", name)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_") ||
		strings.HasSuffix(name, "-") || strings.HasSuffix(name, "_") {
		return fmt.Errorf("node name '%s' cannot start or end with hyphen (-) or underscore (_)", name)
	}
	return nil
}
