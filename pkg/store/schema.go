package store

import (
	"errors"
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by project so several
// dashboards can share one Redis server.
//
// Key pattern: gauge:{project}:node:{root}
// Channel pattern: gauge:{project}:changes:{root}

// ErrInvalidPath is returned for empty paths, empty segments or paths deeper
// than root/child.
var ErrInvalidPath = errors.New("invalid store path")

// NodeKey returns the Redis key of the hash backing a root path.
// Pattern: gauge:{project}:node:{root}
func NodeKey(project, root string) string {
	return fmt.Sprintf("gauge:%s:node:%s", project, root)
}

// ChangesChannel returns the Pub/Sub channel carrying change notifications for a root.
// Pattern: gauge:{project}:changes:{root}
func ChangesChannel(project, root string) string {
	return fmt.Sprintf("gauge:%s:changes:%s", project, root)
}

// Path is a parsed store path.
type Path struct {
	Root  string
	Child string // empty for root paths
}

// IsRoot reports whether the path addresses a whole root node.
func (p Path) IsRoot() bool {
	return p.Child == ""
}

func (p Path) String() string {
	if p.IsRoot() {
		return p.Root
	}
	return p.Root + "/" + p.Child
}

// Covers reports whether a change at other is visible at p.
// A root sees every change beneath it; a child sees changes to itself and
// to its root.
func (p Path) Covers(other Path) bool {
	if p.Root != other.Root {
		return false
	}
	return p.IsRoot() || other.IsRoot() || p.Child == other.Child
}

// ParsePath splits "root" or "root/child" into a Path.
func ParsePath(raw string) (Path, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return Path{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	parts := strings.Split(raw, "/")
	if len(parts) > 2 {
		return Path{}, fmt.Errorf("%w: %q is deeper than root/child", ErrInvalidPath, raw)
	}
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, raw)
		}
	}

	p := Path{Root: parts[0]}
	if len(parts) == 2 {
		p.Child = parts[1]
	}
	return p, nil
}

// Join builds a child path.
func Join(root, child string) string {
	return root + "/" + child
}
