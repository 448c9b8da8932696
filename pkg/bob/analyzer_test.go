package bob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbuddy/bob/pkg/bob/llm"
)

func testAnalyzer(client llm.Client) *Analyzer {
	return NewAnalyzer(client, DefaultConfig(), slog.New(slog.DiscardHandler))
}

// TestAnalyzeContext_Stages tests stage classification by message count.
func TestAnalyzeContext_Stages(t *testing.T) {
	tests := []struct {
		count int
		stage string
	}{
		{0, StageBeginning},
		{1, StageEarly},
		{5, StageEarly},
		{6, StageMiddle},
		{14, StageMiddle},
		{15, StageExtended},
		{30, StageExtended},
	}

	a := testAnalyzer(llm.NewMockClient(""))
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d messages", tt.count), func(t *testing.T) {
			s := NewInitialState("")
			s.Messages = messageStack(tt.count)
			analysis := a.AnalyzeContext(s)
			assert.Equal(t, tt.stage, analysis.Stage)
			assert.Equal(t, tt.count, analysis.TotalMessages)
		})
	}
}

// TestAnalyzeContext_Counts tests per-role counting.
func TestAnalyzeContext_Counts(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))
	s := NewInitialState("")
	s.Messages = []llm.Message{
		{Role: llm.RoleUser, Content: "q1"},
		{Role: llm.RoleAssistant, Content: "a1"},
		{Role: llm.RoleTool, Content: "145", ToolCallID: "c1"},
		{Role: llm.RoleUser, Content: "q2"},
	}

	analysis := a.AnalyzeContext(s)
	assert.Equal(t, 4, analysis.TotalMessages)
	assert.Equal(t, 2, analysis.UserMessages)
	assert.Equal(t, 1, analysis.AssistantMessages)
}

// TestAnalyzeContext_RecentTopics tests that topics are the user
// messages within the trailing window of six.
func TestAnalyzeContext_RecentTopics(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))
	s := NewInitialState("")
	for i := 0; i < 5; i++ {
		s.Messages = append(s.Messages,
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("topic %d", i)},
			llm.Message{Role: llm.RoleAssistant, Content: "ok"},
		)
	}

	analysis := a.AnalyzeContext(s)
	// Last 6 messages cover the user turns for topics 2, 3, and 4.
	assert.Equal(t, []string{"topic 2", "topic 3", "topic 4"}, analysis.RecentTopics)
}

// TestAnalyzeContext_NoTopicsForSingleMessage tests the two-message
// floor for topic extraction.
func TestAnalyzeContext_NoTopicsForSingleMessage(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))
	s := NewInitialState("")
	s.Messages = []llm.Message{{Role: llm.RoleUser, Content: "hello"}}

	assert.Empty(t, a.AnalyzeContext(s).RecentTopics)
}

// TestAnalyzeContext_NeedsSummary tests the threshold boundary.
func TestAnalyzeContext_NeedsSummary(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))

	s := NewInitialState("")
	s.Messages = messageStack(20)
	assert.False(t, a.AnalyzeContext(s).NeedsSummary)

	s.Messages = messageStack(21)
	assert.True(t, a.AnalyzeContext(s).NeedsSummary)
}

// TestAnalyzeContext_Duration tests duration estimation from metadata
// timestamps.
func TestAnalyzeContext_Duration(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))
	start := time.Now().Add(-90 * time.Second)

	s := NewInitialState("")
	s.Messages = messageStack(2)
	s.Metadata.StartTime = start.Format(time.RFC3339)
	s.Metadata.LastUpdated = start.Add(90 * time.Second).Format(time.RFC3339)

	analysis := a.AnalyzeContext(s)
	require.NotNil(t, analysis.DurationMinutes)
	assert.Equal(t, 1.5, *analysis.DurationMinutes)
}

// TestAnalyzeContext_DurationMalformed tests nil duration on bad
// timestamps.
func TestAnalyzeContext_DurationMalformed(t *testing.T) {
	a := testAnalyzer(llm.NewMockClient(""))
	s := NewInitialState("")
	s.Metadata.StartTime = "yesterday"

	assert.Nil(t, a.AnalyzeContext(s).DurationMinutes)

	s.Metadata = nil
	assert.Nil(t, a.AnalyzeContext(s).DurationMinutes)
}

// TestSummarize tests the model-backed summary path.
func TestSummarize(t *testing.T) {
	mock := llm.NewMockClient("The user asked about weather and math.")
	a := testAnalyzer(mock)

	s := NewInitialState("")
	s.Messages = messageStack(4)

	got := a.Summarize(context.Background(), s)
	assert.Equal(t, "The user asked about weather and math.", got)

	req := mock.LastCall()
	require.NotNil(t, req)
	assert.Contains(t, req.SystemPrompt, "summaries")
	assert.Contains(t, req.Messages[0].Content, "message 0")
}

// TestSummarize_TooShort tests the short-conversation short circuit.
func TestSummarize_TooShort(t *testing.T) {
	mock := llm.NewMockClient("unused")
	a := testAnalyzer(mock)

	s := NewInitialState("")
	s.Messages = messageStack(3)

	got := a.Summarize(context.Background(), s)
	assert.Equal(t, "Conversation is too short to summarize.", got)
	assert.Zero(t, mock.CallCount())
}

// TestSummarize_ModelFailure tests that model errors become text.
func TestSummarize_ModelFailure(t *testing.T) {
	mock := llm.NewMockClient("").WithError(errors.New("boom"))
	a := testAnalyzer(mock)

	s := NewInitialState("")
	s.Messages = messageStack(5)

	got := a.Summarize(context.Background(), s)
	assert.Equal(t, "Error generating summary: boom", got)
}

// TestPlanResponse tests the model-backed planning path.
func TestPlanResponse(t *testing.T) {
	mock := llm.NewMockClient("Answer with the forecast, no tools needed.")
	a := testAnalyzer(mock)

	s := NewInitialState("What's the weather like?")

	got := a.PlanResponse(context.Background(), s)
	assert.Equal(t, "Answer with the forecast, no tools needed.", got)

	req := mock.LastCall()
	require.NotNil(t, req)
	assert.Contains(t, req.SystemPrompt, "planning assistant")
	assert.Contains(t, req.Messages[0].Content, "What's the weather like?")
}

// TestPlanResponse_NoInput tests the empty-input short circuit.
func TestPlanResponse_NoInput(t *testing.T) {
	mock := llm.NewMockClient("unused")
	a := testAnalyzer(mock)

	got := a.PlanResponse(context.Background(), NewInitialState(""))
	assert.Equal(t, "No user input to plan for.", got)
	assert.Zero(t, mock.CallCount())
}

// TestPlanResponse_ModelFailure tests that model errors become text.
func TestPlanResponse_ModelFailure(t *testing.T) {
	mock := llm.NewMockClient("").WithError(errors.New("rate limited"))
	a := testAnalyzer(mock)

	got := a.PlanResponse(context.Background(), NewInitialState("hello"))
	assert.Equal(t, "Error generating plan: rate limited", got)
}
