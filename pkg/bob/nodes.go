package bob

import (
	"context"
	"fmt"

	"github.com/opsbuddy/bob/pkg/bob/llm"
	"github.com/opsbuddy/bob/pkg/bob/resilience"
	"github.com/opsbuddy/bob/pkg/workflow"
)

// Workflow node identifiers.
const (
	nodeProcessInput       = "process_input"
	nodeAdvancedProcessing = "advanced_processing"
	nodeGenerateResponse   = "generate_response"
	nodeTools              = "tools"
	nodeUpdateState        = "update_state"
)

// buildGraph wires the turn workflow:
//
//	process_input ─┬─> advanced_processing ─> generate_response
//	               └────────────────────────────────┘      │
//	        tools <─ (tool calls requested) ───────────────┤
//	          │                                            │
//	          └──> generate_response          update_state <┘
//	                                               │
//	                              should_continue ─┴─> process_input | END
//
// Tool results loop back into generation so the model can react to
// them before the turn completes.
func (a *Agent) buildGraph() (*workflow.CompiledGraph[*State], error) {
	return workflow.NewGraph[*State]().
		AddNode(nodeProcessInput, a.processInput).
		AddNode(nodeAdvancedProcessing, a.advancedProcessing).
		AddNode(nodeGenerateResponse, a.generateResponse).
		AddNode(nodeTools, a.executeTools).
		AddNode(nodeUpdateState, a.updateState).
		SetEntry(nodeProcessInput).
		AddConditionalEdge(nodeProcessInput, a.routeAfterInput).
		AddEdge(nodeAdvancedProcessing, nodeGenerateResponse).
		AddConditionalEdge(nodeGenerateResponse, a.routeAfterGenerate).
		AddEdge(nodeTools, nodeGenerateResponse).
		AddConditionalEdge(nodeUpdateState, a.shouldContinue).
		Compile()
}

// processInput appends the pending user input to the conversation log
// and advances the iteration counter. The pending input stays set until
// update_state so downstream nodes (planning, fallback responses) can
// still see it.
func (a *Agent) processInput(ctx workflow.Context, state *State) (*State, error) {
	if err := state.Validate(); err != nil {
		ctx.Logger().Error("state validation failed", "node", nodeProcessInput, "error", err)
		state.AnnotateError(fmt.Sprintf("invalid state in process_input: %v", err))
		return state, nil
	}

	state.IterationCount++

	if state.UserInput == "" {
		state.UpdateMetadata()
		return state, nil
	}

	state.Messages = append(state.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: state.UserInput,
	})
	state.UpdateMetadata()
	state.TruncateHistory(a.cfg.MaxHistory)
	state.ResetError()

	ctx.Logger().Debug("processed user input", "messages", len(state.Messages))
	return state, nil
}

// routeAfterInput sends fresh user input through enrichment; loop
// re-entries without new input go straight to generation.
func (a *Agent) routeAfterInput(_ workflow.Context, state *State) string {
	if state.UserInput != "" && a.degradation.AllowAdvanced() {
		return nodeAdvancedProcessing
	}
	return nodeGenerateResponse
}

// advancedProcessing enriches the turn context with stage analysis, an
// optional rolling summary, and a response plan. Its failures never
// block the turn; the analyzer degrades internally.
func (a *Agent) advancedProcessing(ctx workflow.Context, state *State) (*State, error) {
	analysis := a.analyzer.AnalyzeContext(state)
	state.Context.Analysis = &analysis

	state.UpdateMetadata()
	state.Context.LastAnalysisUpdate = state.Metadata.LastUpdated

	if analysis.NeedsSummary {
		state.Context.ConversationSummary = a.analyzer.Summarize(ctx, state)
	}
	if state.UserInput != "" {
		state.Context.ResponsePlan = a.analyzer.PlanResponse(ctx, state)
	}

	ctx.Logger().Debug("advanced processing completed", "stage", analysis.Stage)
	return state, nil
}

// generateResponse invokes the model with the conversation history and
// any derived context, wrapped in retry with a degradation fallback.
// The node never fails: exhausted retries produce a canned response.
func (a *Agent) generateResponse(ctx workflow.Context, state *State) (*State, error) {
	usedFallback := false

	primary := func(callCtx context.Context) (*llm.CompletionResponse, error) {
		if err := state.Validate(); err != nil {
			return nil, &resilience.ValidationError{Field: "state", Message: err.Error()}
		}

		req := llm.CompletionRequest{
			SystemPrompt: a.buildSystemPrompt(state),
			Messages:     state.Messages,
		}
		if a.degradation.AllowTools() {
			req.Tools = a.registry.Catalog()
		}
		return a.client.Complete(callCtx, req)
	}

	fallback := func(context.Context) (*llm.CompletionResponse, error) {
		usedFallback = true
		text := a.degradation.SimplifiedResponse(state.UserInput)
		if text == "" {
			text = "I'm having trouble generating a response right now. Please try again."
		}
		return &llm.CompletionResponse{Content: text, FinishReason: "fallback"}, nil
	}

	resp, err := resilience.Do(ctx, a.retrier, nodeGenerateResponse, primary, fallback)
	if err != nil {
		// Unreachable with the fallback above, but keep the node
		// non-fatal regardless.
		ctx.Logger().Error("response generation failed", "error", err)
		state.AnnotateError(fmt.Sprintf("response generation failed: %v", err))
		state.Response = &llm.Message{
			Role:    llm.RoleAssistant,
			Content: "I'm having trouble generating a response right now. Please try again.",
		}
		return state, nil
	}

	msg := resp.Message()
	state.Response = &msg

	if state.Metadata != nil {
		state.Metadata.Usage.Add(resp.Usage)
	}

	if usedFallback {
		state.AnnotateError("using fallback response generation")
		return state, nil
	}

	state.ResetError()

	// Tool-call requests go into the log immediately so the tools node
	// can pair results with them.
	if len(msg.ToolCalls) > 0 {
		state.Messages = append(state.Messages, msg)
		ctx.Logger().Debug("model requested tools", "count", len(msg.ToolCalls))
	}
	return state, nil
}

// buildSystemPrompt layers the derived context onto the configured
// system message when advanced features are allowed.
func (a *Agent) buildSystemPrompt(state *State) string {
	prompt := a.cfg.SystemMessage
	if !a.degradation.AllowAdvanced() {
		return prompt
	}

	c := state.Context
	if c.ResponsePlan != "" {
		prompt += fmt.Sprintf("\n\nResponse Plan: %s", c.ResponsePlan)
	}
	if c.ConversationSummary != "" {
		prompt += fmt.Sprintf("\n\nConversation Summary: %s", c.ConversationSummary)
	}
	if c.Analysis != nil {
		prompt += fmt.Sprintf("\n\nConversation Stage: %s", c.Analysis.Stage)
		if topics := c.Analysis.RecentTopics; len(topics) > 0 {
			start := len(topics) - 3
			if start < 0 {
				start = 0
			}
			prompt += fmt.Sprintf("\nRecent Topics: %s", joinTopics(topics[start:]))
		}
	}
	return prompt
}

func joinTopics(topics []string) string {
	out := ""
	for i, t := range topics {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}

// routeAfterGenerate runs the tool loop when the model requested tool
// calls and the degradation level still allows tool use.
func (a *Agent) routeAfterGenerate(_ workflow.Context, state *State) string {
	if !a.degradation.AllowTools() {
		return nodeUpdateState
	}
	if state.Response != nil && len(state.Response.ToolCalls) > 0 {
		return nodeTools
	}
	return nodeUpdateState
}

// executeTools runs every requested tool call and appends the results
// as tool messages. Tool failures become result text; they never abort
// the turn.
func (a *Agent) executeTools(ctx workflow.Context, state *State) (*State, error) {
	if state.Response == nil {
		return state, nil
	}

	for _, tc := range state.Response.ToolCalls {
		result, err := a.registry.Execute(tc.Name, tc.Arguments)
		if err != nil {
			result = fmt.Sprintf("Error executing tool %s: %v", tc.Name, err)
			ctx.Logger().Error("tool execution failed", "tool", tc.Name, "error", err)
		} else {
			ctx.Logger().Debug("tool executed", "tool", tc.Name)
		}

		state.Messages = append(state.Messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    result,
			ToolCallID: tc.ID,
			Name:       tc.Name,
		})
	}

	// The tool-call request is already in Messages; clear the pending
	// response so the next generation starts fresh.
	state.Response = nil
	return state, nil
}

// updateState folds the pending response into the conversation log and
// clears the consumed user input.
func (a *Agent) updateState(ctx workflow.Context, state *State) (*State, error) {
	if err := state.Validate(); err != nil {
		ctx.Logger().Error("state validation failed", "node", nodeUpdateState, "error", err)
		state.AnnotateError(fmt.Sprintf("invalid state in update_state: %v", err))
		return state, nil
	}

	if state.Response == nil {
		state.UserInput = ""
		state.ResetError()
		return state, nil
	}

	// Tool-call-only responses were appended by generate_response so
	// the tools node could see them; don't add them twice.
	if len(state.Response.ToolCalls) == 0 {
		state.Messages = append(state.Messages, *state.Response)
	}

	state.ResponseText = state.Response.Content
	state.Response = nil
	state.UserInput = ""
	state.UpdateMetadata()
	state.ResetError()

	ctx.Logger().Debug("state updated", "messages", len(state.Messages))
	return state, nil
}

// shouldContinue is the continuation decision after update_state.
func (a *Agent) shouldContinue(ctx workflow.Context, state *State) string {
	if state.ShouldEnd || state.IterationCount >= a.cfg.MaxIterations {
		ctx.Logger().Debug("ending turn",
			"should_end", state.ShouldEnd,
			"iterations", state.IterationCount)
		return workflow.END
	}

	// Single-turn mode ends once the pending input has been consumed.
	if !state.ContinueConversation && state.IterationCount >= 1 && state.UserInput == "" {
		return workflow.END
	}

	return nodeProcessInput
}
