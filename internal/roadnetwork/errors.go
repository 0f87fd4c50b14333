package roadnetwork

import "fmt"

// ErrRoutingEngine is returned internally when an OSRM call fails; the
// adapter always catches it and falls back rather than letting it
// escape to callers (spec.md §7).
type ErrRoutingEngine struct {
	Reason string
}

func (e *ErrRoutingEngine) Error() string {
	return fmt.Sprintf("routing engine call failed: %s", e.Reason)
}
