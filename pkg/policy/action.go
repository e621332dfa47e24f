package policy

import "strings"

const (
	// WritePrefix marks an action as a write.
	WritePrefix = "write:"

	// ReadPrefix marks an action as a read. Anything without the write
	// prefix is treated as a read.
	ReadPrefix = "read:"
)

// IsWrite reports whether the action carries the recognized write prefix.
func IsWrite(action string) bool {
	return strings.HasPrefix(action, WritePrefix)
}

// UnitFor derives the load-tracking unit from an action. The path after
// the operation prefix becomes a route unit: "write:/payments" maps to
// "route:/payments". An action without a path maps to the root route so
// it still participates in load tracking.
func UnitFor(action string) string {
	path := action
	if i := strings.Index(action, ":"); i >= 0 {
		path = action[i+1:]
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "route:" + path
}
