package bob

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/opsbuddy/bob/pkg/bob/llm"
)

const (
	summarySystemPrompt = "You are a helpful assistant that creates concise summaries of conversations. " +
		"Summarize the key points, decisions made, and important information discussed."

	planningSystemPrompt = "You are a planning assistant that helps analyze user requests and create response strategies. " +
		"Analyze the user's input and provide a brief plan for how to respond effectively."
)

// needsSummaryThreshold is the message count above which the analyzer
// recommends summarization.
const needsSummaryThreshold = 20

// Analyzer derives conversation signals used to enrich generation. It
// is off the critical failure path: its own failures degrade to empty
// or error-flagged results and never propagate.
type Analyzer struct {
	client llm.Client
	cfg    Config
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer backed by client for the model-backed
// operations (summarization, planning). A nil logger falls back to
// slog.Default().
func NewAnalyzer(client llm.Client, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, cfg: cfg, logger: logger}
}

// AnalyzeContext computes message counts, conversation stage, recent
// topics, duration, and the needs-summary signal. Pure over the state;
// no model call.
func (a *Analyzer) AnalyzeContext(state *State) Analysis {
	total := len(state.Messages)

	var userCount, assistantCount int
	for _, msg := range state.Messages {
		switch msg.Role {
		case llm.RoleUser:
			userCount++
		case llm.RoleAssistant:
			assistantCount++
		}
	}

	var recentTopics []string
	if total >= 2 {
		start := total - 6
		if start < 0 {
			start = 0
		}
		for _, msg := range state.Messages[start:] {
			if msg.Role == llm.RoleUser && msg.Content != "" {
				recentTopics = append(recentTopics, msg.Content)
			}
		}
	}

	var stage string
	switch {
	case total == 0:
		stage = StageBeginning
	case total < 6:
		stage = StageEarly
	case total < 15:
		stage = StageMiddle
	default:
		stage = StageExtended
	}

	analysis := Analysis{
		TotalMessages:     total,
		UserMessages:      userCount,
		AssistantMessages: assistantCount,
		Stage:             stage,
		RecentTopics:      recentTopics,
		DurationMinutes:   estimateDuration(state.Metadata),
		NeedsSummary:      total > needsSummaryThreshold,
	}

	a.logger.Info("context analysis",
		"stage", stage,
		"total_messages", total)

	return analysis
}

// Summarize produces a concise summary of the conversation via one
// model call. Failures return an explanatory string, never an error.
func (a *Analyzer) Summarize(ctx context.Context, state *State) string {
	if len(state.Messages) < 4 {
		return "Conversation is too short to summarize."
	}

	var b strings.Builder
	for _, msg := range state.Messages {
		if msg.Content == "" {
			continue
		}
		speaker := "Assistant"
		if msg.Role == llm.RoleUser {
			speaker = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Content)
	}

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Please provide a concise summary of this conversation:\n\n%s", b.String()),
		}},
	})
	if err != nil {
		a.logger.Error("summarize conversation failed", "error", err)
		return fmt.Sprintf("Error generating summary: %v", err)
	}

	a.logger.Info("generated conversation summary", "chars", len(resp.Content))
	return resp.Content
}

// PlanResponse produces a brief strategy for answering the pending user
// input via one model call. Failures return an explanatory string.
func (a *Analyzer) PlanResponse(ctx context.Context, state *State) string {
	if state.UserInput == "" {
		return "No user input to plan for."
	}

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: planningSystemPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf(
				"Analyze this user input and create a response plan:\n\nUser: %s\n\n"+
					"Consider: What is the user asking for? What type of response would be most helpful? "+
					"Are there any tools that should be used? What information is needed?",
				state.UserInput),
		}},
	})
	if err != nil {
		a.logger.Error("plan response failed", "error", err)
		return fmt.Sprintf("Error generating plan: %v", err)
	}

	return resp.Content
}

// estimateDuration returns the conversation length in minutes rounded
// to one decimal, or nil when timestamps are missing or malformed.
func estimateDuration(meta *Metadata) *float64 {
	if meta == nil || meta.StartTime == "" || meta.LastUpdated == "" {
		return nil
	}
	start, err := time.Parse(time.RFC3339, meta.StartTime)
	if err != nil {
		return nil
	}
	end, err := time.Parse(time.RFC3339, meta.LastUpdated)
	if err != nil {
		return nil
	}
	minutes := math.Round(end.Sub(start).Minutes()*10) / 10
	return &minutes
}
