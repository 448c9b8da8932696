package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify tests error kind classification.
func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"api error typed", &APIError{StatusCode: 500, Message: "server error"}, KindAPI},
		{"api 429 typed", &APIError{StatusCode: 429, Message: "slow down"}, KindRateLimit},
		{"validation typed", &ValidationError{Message: "bad field"}, KindValidation},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"rate limit text", errors.New("rate limit exceeded"), KindRateLimit},
		{"429 text", errors.New("got 429 from upstream"), KindRateLimit},
		{"too many requests", errors.New("too many requests"), KindRateLimit},
		{"anthropic text", errors.New("anthropic returned an overloaded response"), KindAPI},
		{"timeout text", errors.New("request timed out"), KindTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork},
		{"host unreachable", errors.New("host unreachable"), KindNetwork},
		{"invalid text", errors.New("invalid message role"), KindValidation},
		{"unknown", errors.New("something odd happened"), KindUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

// TestClassify_WrappedErrors tests that wrapped typed errors are found.
func TestClassify_WrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &APIError{StatusCode: 429})
	assert.Equal(t, KindRateLimit, Classify(wrapped))
}

// TestClassify_JSONSyntaxError tests that malformed JSON counts as
// validation.
func TestClassify_JSONSyntaxError(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte("{not json"), &v)
	assert.Equal(t, KindValidation, Classify(err))
}

// TestFeedbackMessage tests per-kind user-facing strings.
func TestFeedbackMessage(t *testing.T) {
	msg := FeedbackMessage(KindRateLimit, false)
	assert.NotEmpty(t, msg)
	assert.NotContains(t, msg, "Retrying")

	retry := FeedbackMessage(KindRateLimit, true)
	assert.Contains(t, retry, "Retrying")
}
