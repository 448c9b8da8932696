// Package workflow provides a small graph-based execution engine for
// conversation turn processing.
//
// A workflow is built as a set of named nodes connected by edges. Edges are
// either unconditional or conditional: a conditional edge runs a router
// function against the current state to pick the next node. The builder
// (Graph) is compiled into an immutable CompiledGraph which can execute the
// same graph concurrently for independent runs.
//
// Execution is strictly sequential within a run: one node at a time, each
// node receiving the current state and returning the next. A step ceiling
// bounds runaway loops, node panics are recovered into errors, and every
// node visit is logged and measured.
//
// Two execution modes are supported:
//
//   - Run: execute to END and return the final state.
//   - Stream: execute to END while emitting a node-granularity Update after
//     every completed node, for incremental consumption.
package workflow
