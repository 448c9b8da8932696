package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearGraph(t *testing.T) *CompiledGraph[Counter] {
	t.Helper()
	compiled, err := NewGraph[Counter]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddNode("c", visit("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	return compiled
}

// TestRun_Linear tests a straight-line execution.
func TestRun_Linear(t *testing.T) {
	compiled := linearGraph(t)

	result, err := compiled.Run(NewContext(context.Background()), Counter{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)
	assert.Equal(t, []string{"a", "b", "c"}, result.Path)
}

// TestRun_NilContext tests the nil-context guard.
func TestRun_NilContext(t *testing.T) {
	compiled := linearGraph(t)

	_, err := compiled.Run(nil, Counter{})
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestRun_ConditionalRouting tests runtime branch selection.
func TestRun_ConditionalRouting(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("check", visit("check")).
		AddNode("high", visit("high")).
		AddNode("low", visit("low")).
		AddConditionalEdge("check", func(_ Context, s Counter) string {
			if s.Value > 5 {
				return "high"
			}
			return "low"
		}).
		AddEdge("high", END).
		AddEdge("low", END).
		SetEntry("check").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(context.Background()), Counter{Value: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "high"}, result.Path)

	result, err = compiled.Run(NewContext(context.Background()), Counter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "low"}, result.Path)
}

// TestRun_MaxSteps tests the step ceiling on a looping graph.
func TestRun_MaxSteps(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("loop", visit("loop")).
		AddConditionalEdge("loop", func(_ Context, s Counter) string {
			return "loop" // never ends on its own
		}).
		SetEntry("loop").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(context.Background()), Counter{}, WithMaxSteps(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxSteps)

	var maxErr *MaxStepsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, "loop", maxErr.LastNodeID)

	// The error carries the state at termination.
	carried, ok := maxErr.State.(Counter)
	require.True(t, ok)
	assert.Equal(t, 5, carried.Value)
	assert.Equal(t, 5, result.Value)
}

// TestRun_NodeError tests that node failures wrap into NodeError.
func TestRun_NodeError(t *testing.T) {
	boom := errors.New("boom")
	compiled, err := NewGraph[Counter]().
		AddNode("a", visit("a")).
		AddNode("b", func(_ Context, s Counter) (Counter, error) {
			return s, boom
		}).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), Counter{})
	require.Error(t, err)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.NodeID)
	assert.ErrorIs(t, err, boom)
}

// TestRun_PanicRecovery tests that node panics become PanicError.
func TestRun_PanicRecovery(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", func(_ Context, s Counter) (Counter, error) {
			panic("node exploded")
		}).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), Counter{})
	require.Error(t, err)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "a", panicErr.NodeID)
	assert.Equal(t, "node exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

// TestRun_Cancellation tests pre-node cancellation checks.
func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	compiled, err := NewGraph[Counter]().
		AddNode("a", func(_ Context, s Counter) (Counter, error) {
			cancel() // cancel mid-run; checked before the next node
			s.Value++
			return s, nil
		}).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(ctx), Counter{})
	require.Error(t, err)

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "b", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Value)
}

// TestRun_RouterErrors tests invalid router results.
func TestRun_RouterErrors(t *testing.T) {
	t.Run("empty result", func(t *testing.T) {
		compiled, err := NewGraph[Counter]().
			AddNode("a", increment).
			AddConditionalEdge("a", func(_ Context, _ Counter) string {
				return ""
			}).
			SetEntry("a").
			Compile()
		require.NoError(t, err)

		_, err = compiled.Run(NewContext(context.Background()), Counter{})
		assert.ErrorIs(t, err, ErrInvalidRouterResult)
	})

	t.Run("unknown target", func(t *testing.T) {
		compiled, err := NewGraph[Counter]().
			AddNode("a", increment).
			AddConditionalEdge("a", func(_ Context, _ Counter) string {
				return "ghost"
			}).
			SetEntry("a").
			Compile()
		require.NoError(t, err)

		_, err = compiled.Run(NewContext(context.Background()), Counter{})
		assert.ErrorIs(t, err, ErrRouterTargetNotFound)

		var routerErr *RouterError
		require.ErrorAs(t, err, &routerErr)
		assert.Equal(t, "a", routerErr.FromNode)
		assert.Equal(t, "ghost", routerErr.Returned)
	})
}

// TestRun_LoopTerminates tests a bounded loop driven by a router.
func TestRun_LoopTerminates(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("work", visit("work")).
		AddConditionalEdge("work", func(_ Context, s Counter) string {
			if s.Value >= 3 {
				return END
			}
			return "work"
		}).
		SetEntry("work").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(context.Background()), Counter{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)
	assert.Equal(t, []string{"work", "work", "work"}, result.Path)
}
