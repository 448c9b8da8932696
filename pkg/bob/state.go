// Package bob implements the conversational agent: the turn state
// machine, the context analyzer, and the Agent facade that ties the
// model client, tool registry, conversation store, and resilience layer
// together per conversation thread.
package bob

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsbuddy/bob/pkg/bob/llm"
)

// Conversation stages by message count.
const (
	StageBeginning = "beginning"
	StageEarly     = "early"
	StageMiddle    = "middle"
	StageExtended  = "extended"
)

// State is the conversation record threaded through every workflow node.
// Messages is the authoritative log; everything else is turn-scoped
// control or derived data.
type State struct {
	// Messages is append-only within a turn. Only history truncation
	// may remove entries, and it never touches the first message.
	Messages []llm.Message `json:"messages"`

	// UserInput holds text awaiting processing. Cleared once consumed
	// by process_input.
	UserInput string `json:"user_input,omitempty"`

	// Response is the most recently generated assistant output before
	// update_state folds it into Messages.
	Response *llm.Message `json:"response,omitempty"`

	// ResponseText is the flattened text of the last folded response.
	ResponseText string `json:"response_text,omitempty"`

	// IterationCount increments once per pass through process_input.
	IterationCount int `json:"iteration_count"`

	// ShouldEnd is an explicit terminal flag settable by any node.
	ShouldEnd bool `json:"should_end"`

	// ContinueConversation selects multi-turn mode. When false the turn
	// ends once a response has replaced the pending input.
	ContinueConversation bool `json:"continue_conversation"`

	Context  Context   `json:"context"`
	Metadata *Metadata `json:"metadata,omitempty"`

	// Transient error fields, reset on successful progress.
	LastError  string `json:"last_error,omitempty"`
	RetryCount int    `json:"retry_count"`
}

// Context carries derived artifacts consumed by response generation.
// Fields are additive within a turn; nodes never replace the whole
// record.
type Context struct {
	ResponsePlan         string    `json:"response_plan,omitempty"`
	ConversationSummary  string    `json:"conversation_summary,omitempty"`
	Analysis             *Analysis `json:"analysis,omitempty"`
	LastAnalysisUpdate   string    `json:"last_analysis_update,omitempty"`
	Truncated            bool      `json:"truncated,omitempty"`
	OriginalMessageCount int       `json:"original_message_count,omitempty"`
}

// Analysis is the context analyzer's output.
type Analysis struct {
	TotalMessages     int      `json:"total_messages"`
	UserMessages      int      `json:"user_messages"`
	AssistantMessages int      `json:"assistant_messages"`
	Stage             string   `json:"conversation_stage"`
	RecentTopics      []string `json:"recent_topics,omitempty"`
	DurationMinutes   *float64 `json:"conversation_length_minutes,omitempty"`
	NeedsSummary      bool     `json:"needs_summary"`
}

// Metadata is conversation bookkeeping, refreshed by UpdateMetadata.
type Metadata struct {
	StartTime           string         `json:"start_time"`
	LastUpdated         string         `json:"last_updated"`
	TotalMessages       int            `json:"total_messages"`
	TotalTokensEstimate int            `json:"total_tokens_estimate"`
	ConversationID      string         `json:"conversation_id"`
	UserPreferences     map[string]any `json:"user_preferences"`

	// Usage accumulates the token counts the model reports, across every
	// completion call of the conversation. TotalTokensEstimate stays a
	// character-based estimate of the history itself.
	Usage llm.TokenUsage `json:"usage"`
}

// NewInitialState creates the state for a new conversation with
// userInput pending.
func NewInitialState(userInput string) *State {
	now := time.Now().Format(time.RFC3339)
	return &State{
		Messages:  []llm.Message{},
		UserInput: userInput,
		Context:   Context{},
		Metadata: &Metadata{
			StartTime:       now,
			LastUpdated:     now,
			ConversationID:  "conv_" + uuid.New().String(),
			UserPreferences: map[string]any{},
		},
	}
}

// Validate performs the structural check every node runs on entry. A
// failure does not abort the turn; callers annotate and continue.
func (s *State) Validate() error {
	if s == nil {
		return errors.New("state is nil")
	}
	if s.IterationCount < 0 {
		return fmt.Errorf("iteration_count is negative: %d", s.IterationCount)
	}
	for i, msg := range s.Messages {
		switch msg.Role {
		case llm.RoleUser, llm.RoleAssistant, llm.RoleTool, llm.RoleSystem:
		default:
			return fmt.Errorf("message %d has invalid role %q", i, msg.Role)
		}
	}
	if m := s.Metadata; m != nil {
		if m.StartTime == "" {
			return errors.New("metadata missing start_time")
		}
		if m.LastUpdated == "" {
			return errors.New("metadata missing last_updated")
		}
		if m.ConversationID == "" {
			return errors.New("metadata missing conversation_id")
		}
	}
	return nil
}

// UpdateMetadata refreshes bookkeeping: last-updated timestamp, message
// count, and a rough token estimate (4 chars per token). Metadata is
// initialized lazily if absent.
func (s *State) UpdateMetadata() {
	now := time.Now().Format(time.RFC3339)
	if s.Metadata == nil {
		s.Metadata = &Metadata{
			StartTime:       now,
			ConversationID:  "conv_" + uuid.New().String(),
			UserPreferences: map[string]any{},
		}
	}

	var totalChars int
	for _, msg := range s.Messages {
		totalChars += len(msg.Content)
	}

	s.Metadata.LastUpdated = now
	s.Metadata.TotalMessages = len(s.Messages)
	s.Metadata.TotalTokensEstimate = totalChars / 4
}

// TruncateHistory prunes Messages down to maxMessages, keeping the
// first message (the conversation anchor) plus the most recent
// maxMessages-1. Records the truncation in Context.
func (s *State) TruncateHistory(maxMessages int) {
	if maxMessages <= 0 || len(s.Messages) <= maxMessages {
		return
	}

	original := len(s.Messages)
	if maxMessages > 1 {
		kept := make([]llm.Message, 0, maxMessages)
		kept = append(kept, s.Messages[0])
		kept = append(kept, s.Messages[original-(maxMessages-1):]...)
		s.Messages = kept
	} else {
		s.Messages = s.Messages[original-maxMessages:]
	}

	s.Context.Truncated = true
	s.Context.OriginalMessageCount = original
}

// AnnotateError records a node-level failure without aborting the turn.
func (s *State) AnnotateError(msg string) {
	s.LastError = msg
	s.RetryCount++
	if s.Metadata != nil {
		s.Metadata.LastUpdated = time.Now().Format(time.RFC3339)
	}
}

// ResetError clears transient error fields after successful progress.
func (s *State) ResetError() {
	s.LastError = ""
	s.RetryCount = 0
}

// LastAssistantText returns the text of the most recent assistant
// message carrying actual content, skipping messages that only request
// tool calls. Empty string when none exists.
func (s *State) LastAssistantText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if msg.Role != llm.RoleAssistant {
			continue
		}
		if msg.Content != "" {
			return msg.Content
		}
		// Tool-call-only message: keep looking for the final response.
	}
	return ""
}

// Clone returns a deep copy of the state. Stream consumers receive
// clones so in-flight mutation never races with rendering.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s

	out.Messages = make([]llm.Message, len(s.Messages))
	copy(out.Messages, s.Messages)

	if s.Response != nil {
		r := *s.Response
		out.Response = &r
	}
	if s.Context.Analysis != nil {
		a := *s.Context.Analysis
		if a.RecentTopics != nil {
			a.RecentTopics = append([]string(nil), a.RecentTopics...)
		}
		if a.DurationMinutes != nil {
			d := *a.DurationMinutes
			a.DurationMinutes = &d
		}
		out.Context.Analysis = &a
	}
	if s.Metadata != nil {
		m := *s.Metadata
		if m.UserPreferences != nil {
			m.UserPreferences = make(map[string]any, len(s.Metadata.UserPreferences))
			for k, v := range s.Metadata.UserPreferences {
				m.UserPreferences[k] = v
			}
		}
		out.Metadata = &m
	}
	return &out
}
