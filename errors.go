package pocketflow

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrUsage is the root of all errors caused by driving a node through the
	// wrong execution mode. Usage errors are never retried.
	ErrUsage = errors.New("pocketflow: usage error")

	// ErrAsyncOnly is returned when an async node or flow is driven through Run.
	ErrAsyncOnly = fmt.Errorf("%w: async node requires RunAsync", ErrUsage)

	// ErrSyncOnly is returned when a sync node or flow is driven through RunAsync.
	ErrSyncOnly = fmt.Errorf("%w: sync node requires Run", ErrUsage)

	// ErrNilNode is returned when Run or RunAsync is given a nil node.
	ErrNilNode = fmt.Errorf("%w: nil node", ErrUsage)
)

// Phase names a step of the node lifecycle.
type Phase string

// Lifecycle phases.
const (
	PhasePrep Phase = "prep"
	PhaseExec Phase = "exec"
	PhasePost Phase = "post"
)

// NodeError is a terminal failure: a phase error that nothing recovered.
// For the exec phase it means every attempt failed and the fallback
// re-raised. It aborts the enclosing traversal and surfaces to the caller.
type NodeError struct {
	Node     string
	Phase    Phase
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	if e.Phase == PhaseExec && e.Attempts > 0 {
		return fmt.Sprintf("node %q: %s failed after %d attempts: %v", e.Node, e.Phase, e.Attempts, e.Err)
	}
	return fmt.Sprintf("node %q: %s failed: %v", e.Node, e.Phase, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err carries a terminal node failure.
func IsTerminal(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne)
}

func usageError(sentinel error, name string) error {
	return fmt.Errorf("%w (node %q)", sentinel, name)
}
