package workflow

import (
	"time"

	"github.com/opsbuddy/bob/pkg/workflow/observability"
)

// Update is a node-granularity progress report emitted by Stream.
// Exactly one Update is produced per completed node, carrying the state
// that node returned. The final Update of a run has Done set; if the run
// ended abnormally it also carries the terminal error.
type Update[S any] struct {
	// NodeID is the node that just completed. Empty on a purely terminal
	// update (error before any node ran).
	NodeID string

	// State is the state after the node completed.
	State S

	// Done marks the last update of the run.
	Done bool

	// Err is the terminal error, set only on the final update of a failed
	// run.
	Err error
}

// Stream executes the graph like Run but emits an Update after every
// completed node. The returned channel is unbuffered and closed when the
// run reaches END, fails, or the consumer's context is cancelled; updates
// are produced lazily as the consumer receives them.
//
// Abandoning the stream without draining it requires cancelling the
// context, otherwise the producing goroutine blocks on the next send.
// State produced by nodes completed before abandonment is carried by the
// updates already delivered; there is no rollback.
//
// When S is a pointer type mutated in place, pass WithSnapshot so each
// update carries an independent copy; otherwise delivered updates alias
// state that nodes still executing will mutate.
func (cg *CompiledGraph[S]) Stream(ctx Context, state S, opts ...RunOption) <-chan Update[S] {
	ch := make(chan Update[S])

	go func() {
		defer close(ch)

		if ctx == nil {
			ch <- Update[S]{State: state, Done: true, Err: ErrNilContext}
			return
		}

		cfg := defaultRunConfig()
		for _, opt := range opts {
			opt(&cfg)
		}
		if cfg.logger == nil {
			cfg.logger = ctx.Logger()
		}

		runID := ctx.RunID()
		startTime := time.Now()
		observability.LogRunStart(cfg.logger, runID)

		// Snapshot inside this goroutine, before the state escapes to the
		// consumer: once an update is received the next node starts
		// mutating the live state.
		snapshot := func(s S) S { return s }
		if fn, ok := cfg.snapshot.(func(S) S); ok {
			snapshot = fn
		}

		emit := func(nodeID string, s S) bool {
			select {
			case ch <- Update[S]{NodeID: nodeID, State: snapshot(s)}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		result, nodeCount, err := cg.execute(ctx, ctx, state, &cfg, emit)

		duration := time.Since(startTime)
		cfg.metrics.RecordGraphRun(ctx, err == nil, duration)
		if err != nil {
			observability.LogRunError(cfg.logger, runID, err, float64(duration.Milliseconds()), "")
		} else {
			observability.LogRunComplete(cfg.logger, runID, float64(duration.Milliseconds()), nodeCount)
		}

		final := Update[S]{State: snapshot(result), Done: true, Err: err}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()

	return ch
}
