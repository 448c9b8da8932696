package bob

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbuddy/bob/pkg/bob/llm"
	"github.com/opsbuddy/bob/pkg/workflow"
)

func nodeCtx() workflow.Context {
	return workflow.NewContext(context.Background(),
		workflow.WithLogger(slog.New(slog.DiscardHandler)))
}

// TestProcessInput tests input consumption and iteration advance.
func TestProcessInput(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	state := NewInitialState("hello")
	state, err := agent.processInput(nodeCtx(), state)
	require.NoError(t, err)

	assert.Equal(t, 1, state.IterationCount)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Content)
	// Input stays pending until update_state so routing and planning can
	// still see it.
	assert.Equal(t, "hello", state.UserInput)
	assert.Equal(t, 1, state.Metadata.TotalMessages)
}

// TestProcessInput_IterationMonotonic tests that the counter only ever
// advances, with or without pending input.
func TestProcessInput_IterationMonotonic(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	state := NewInitialState("hello")
	for i := 1; i <= 4; i++ {
		var err error
		state, err = agent.processInput(nodeCtx(), state)
		require.NoError(t, err)
		assert.Equal(t, i, state.IterationCount)
		state.UserInput = ""
	}
	assert.Len(t, state.Messages, 1)
}

// TestProcessInput_Truncates tests the history cap on ingest.
func TestProcessInput_Truncates(t *testing.T) {
	cfg := testAgentConfig()
	cfg.MaxHistory = 4
	agent := newTestAgent(t, llm.NewMockClient("unused"), cfg)

	state := NewInitialState("newest")
	state.Messages = messageStack(6)

	state, err := agent.processInput(nodeCtx(), state)
	require.NoError(t, err)

	assert.Len(t, state.Messages, 4)
	assert.Equal(t, "message 0", state.Messages[0].Content)
	assert.Equal(t, "newest", state.Messages[3].Content)
	assert.True(t, state.Context.Truncated)
}

// TestRouteAfterInput tests the enrichment gate.
func TestRouteAfterInput(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	withInput := NewInitialState("hello")
	assert.Equal(t, nodeAdvancedProcessing, agent.routeAfterInput(nodeCtx(), withInput))

	noInput := NewInitialState("")
	assert.Equal(t, nodeGenerateResponse, agent.routeAfterInput(nodeCtx(), noInput))

	// Degraded agents skip enrichment entirely.
	agent.degradation.Increase()
	assert.Equal(t, nodeGenerateResponse, agent.routeAfterInput(nodeCtx(), withInput))
}

// TestRouteAfterGenerate tests the tool-loop gate.
func TestRouteAfterGenerate(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	plain := NewInitialState("")
	plain.Response = &llm.Message{Role: llm.RoleAssistant, Content: "hi"}
	assert.Equal(t, nodeUpdateState, agent.routeAfterGenerate(nodeCtx(), plain))

	withTools := NewInitialState("")
	withTools.Response = &llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_current_time"}},
	}
	assert.Equal(t, nodeTools, agent.routeAfterGenerate(nodeCtx(), withTools))

	// Tool use is gated off at degradation level 2.
	agent.degradation.Increase()
	agent.degradation.Increase()
	assert.Equal(t, nodeUpdateState, agent.routeAfterGenerate(nodeCtx(), withTools))
}

// TestShouldContinue tests the three-rule continuation decision.
func TestShouldContinue(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	t.Run("explicit end", func(t *testing.T) {
		s := NewInitialState("")
		s.ShouldEnd = true
		assert.Equal(t, workflow.END, agent.shouldContinue(nodeCtx(), s))
	})

	t.Run("iteration ceiling", func(t *testing.T) {
		s := NewInitialState("")
		s.ContinueConversation = true
		s.IterationCount = agent.cfg.MaxIterations
		assert.Equal(t, workflow.END, agent.shouldContinue(nodeCtx(), s))
	})

	t.Run("single turn ends once input consumed", func(t *testing.T) {
		s := NewInitialState("")
		s.IterationCount = 1
		assert.Equal(t, workflow.END, agent.shouldContinue(nodeCtx(), s))
	})

	t.Run("multi turn loops", func(t *testing.T) {
		s := NewInitialState("")
		s.ContinueConversation = true
		s.IterationCount = 1
		assert.Equal(t, nodeProcessInput, agent.shouldContinue(nodeCtx(), s))
	})

	t.Run("single turn with fresh input loops", func(t *testing.T) {
		s := NewInitialState("more")
		s.IterationCount = 1
		assert.Equal(t, nodeProcessInput, agent.shouldContinue(nodeCtx(), s))
	})
}

// TestBuildSystemPrompt tests context layering onto the system message.
func TestBuildSystemPrompt(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	state := NewInitialState("")
	state.Context.ResponsePlan = "be brief"
	state.Context.ConversationSummary = "they talked about dogs"
	state.Context.Analysis = &Analysis{
		Stage:        StageMiddle,
		RecentTopics: []string{"a", "b", "c", "d"},
	}

	prompt := agent.buildSystemPrompt(state)
	assert.Contains(t, prompt, agent.cfg.SystemMessage)
	assert.Contains(t, prompt, "Response Plan: be brief")
	assert.Contains(t, prompt, "Conversation Summary: they talked about dogs")
	assert.Contains(t, prompt, "Conversation Stage: middle")
	// Only the last three topics make it in.
	assert.Contains(t, prompt, "Recent Topics: b, c, d")
	assert.NotContains(t, prompt, "Recent Topics: a")

	// Degraded agents get the bare system message.
	agent.degradation.Increase()
	assert.Equal(t, agent.cfg.SystemMessage, agent.buildSystemPrompt(state))
}

// TestGenerateResponse_AccumulatesUsage tests that reported token usage
// sums across completion calls within a conversation.
func TestGenerateResponse_AccumulatesUsage(t *testing.T) {
	mock := llm.NewMockClient("").WithScript(
		&llm.CompletionResponse{
			Content:      "first",
			FinishReason: "stop",
			Usage:        llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		},
		&llm.CompletionResponse{
			Content:      "second",
			FinishReason: "stop",
			Usage:        llm.TokenUsage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30},
		},
	)
	agent := newTestAgent(t, mock, testAgentConfig())

	state := NewInitialState("")
	state.Messages = messageStack(1)

	var err error
	state, err = agent.generateResponse(nodeCtx(), state)
	require.NoError(t, err)
	state, err = agent.generateResponse(nodeCtx(), state)
	require.NoError(t, err)

	assert.Equal(t, 30, state.Metadata.Usage.InputTokens)
	assert.Equal(t, 15, state.Metadata.Usage.OutputTokens)
	assert.Equal(t, 45, state.Metadata.Usage.TotalTokens)
}

// TestExecuteTools tests result folding and error-as-text behavior.
func TestExecuteTools(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	state := NewInitialState("")
	state.Response = &llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "calculate_math", Arguments: []byte(`{"expression": "2+2"}`)},
			{ID: "c2", Name: "no_such_tool", Arguments: []byte(`{}`)},
		},
	}

	state, err := agent.executeTools(nodeCtx(), state)
	require.NoError(t, err)

	require.Len(t, state.Messages, 2)
	assert.Equal(t, llm.RoleTool, state.Messages[0].Role)
	assert.Equal(t, "4", state.Messages[0].Content)
	assert.Equal(t, "c1", state.Messages[0].ToolCallID)
	assert.Contains(t, state.Messages[1].Content, "Error executing tool no_such_tool")
	assert.Nil(t, state.Response)
}

// TestUpdateState tests response folding and input clearing.
func TestUpdateState(t *testing.T) {
	agent := newTestAgent(t, llm.NewMockClient("unused"), testAgentConfig())

	t.Run("folds plain response", func(t *testing.T) {
		s := NewInitialState("hi")
		s.Response = &llm.Message{Role: llm.RoleAssistant, Content: "hello"}

		s, err := agent.updateState(nodeCtx(), s)
		require.NoError(t, err)

		require.Len(t, s.Messages, 1)
		assert.Equal(t, "hello", s.ResponseText)
		assert.Nil(t, s.Response)
		assert.Empty(t, s.UserInput)
	})

	t.Run("skips tool-call-only response", func(t *testing.T) {
		s := NewInitialState("hi")
		s.Response = &llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "c1"}},
		}

		s, err := agent.updateState(nodeCtx(), s)
		require.NoError(t, err)

		// Already appended by generation; folding it again would
		// duplicate it.
		assert.Empty(t, s.Messages)
		assert.Nil(t, s.Response)
	})

	t.Run("no pending response", func(t *testing.T) {
		s := NewInitialState("hi")
		s, err := agent.updateState(nodeCtx(), s)
		require.NoError(t, err)
		assert.Empty(t, s.UserInput)
	})
}
