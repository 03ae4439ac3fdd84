// Package notify holds the outcome type shared by fire-and-forget notification channels.
package notify

// Result is the outcome of a single channel send.
type Result int

const (
	Success Result = iota
	ConnectionFailed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case ConnectionFailed:
		return "CONNECTION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// OK reports whether the send succeeded.
func (r Result) OK() bool {
	return r == Success
}
