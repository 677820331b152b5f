package prefetch

import (
	"fmt"
	"strings"

	"annotator/internal/filesystem"
)

// PassPolicy decides what happens to a pass requested while another pass is
// still running.
type PassPolicy int

const (
	// PassPolicyCoalesce remembers the request; the running pass repeats once
	// for the latest cursor when it finishes. Any number of requests made
	// during one pass collapse into a single follow-up.
	PassPolicyCoalesce PassPolicy = iota
	// PassPolicyDrop discards the request. Items passed over during rapid
	// paging may then stay unloaded until a later navigation asks for them.
	PassPolicyDrop
)

func (p PassPolicy) String() string {
	switch p {
	case PassPolicyCoalesce:
		return "coalesce"
	case PassPolicyDrop:
		return "drop"
	default:
		return fmt.Sprintf("PassPolicy(%d)", int(p))
	}
}

// ParsePassPolicy converts "coalesce" or "drop" into a PassPolicy.
func ParsePassPolicy(s string) (PassPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coalesce":
		return PassPolicyCoalesce, nil
	case "drop":
		return PassPolicyDrop, nil
	default:
		return PassPolicyCoalesce, fmt.Errorf("unknown prefetch policy %q", s)
	}
}

// Pressure reports memory pressure. While ShouldThrottle is true, passes
// load only the item under the cursor.
type Pressure interface {
	ShouldThrottle() bool
}

// Option configures a Session.
type Option func(*Session)

// WithLoader replaces the file system loader.
func WithLoader(l Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithPolicy sets the busy-pass policy.
func WithPolicy(p PassPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithWatch enables an fsnotify watcher that flags the collection stale when
// images are added, removed or renamed.
func WithWatch(enabled bool) Option {
	return func(s *Session) { s.watch = enabled }
}

// WithWorkerLimit caps concurrent loads within a pass. Zero uses the
// CPU-derived default.
func WithWorkerLimit(n int) Option {
	return func(s *Session) { s.workerLimit = n }
}

// WithRetryConfig sets the retry policy for sidecar stats, reads and writes.
func WithRetryConfig(cfg filesystem.RetryConfig) Option {
	return func(s *Session) { s.retry = cfg }
}

// WithID sets the session identifier used in logs.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithPressure makes passes skip read-ahead while p reports pressure.
func WithPressure(p Pressure) Option {
	return func(s *Session) { s.pressure = p }
}
