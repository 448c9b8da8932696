package workflow

// END is the terminal node identifier.
// Use this as an edge target to indicate the workflow should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// S may be a value type or a pointer type. With a pointer S, nodes may
// mutate the state in place and return the same pointer; the engine then
// threads a single aliased value through the run, so any consumer that
// observes intermediate state (Stream) must be given a copy function via
// WithSnapshot.
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime
// state.
//
// The router should return a valid node ID or workflow.END. Returning an
// empty string or an unknown node ID will cause a runtime error.
//
// Example:
//
//	func router(ctx workflow.Context, s State) string {
//	    if s.ShouldEnd {
//	        return workflow.END
//	    }
//	    return "process_input"
//	}
type RouterFunc[S any] func(ctx Context, state S) string
