package resilience

import (
	"fmt"
	"log/slog"
	"sync"
)

// MaxDegradationLevel is the highest (most degraded) level.
const MaxDegradationLevel = 3

// Degradation is a coarse circuit breaker over the agent's feature
// surface. The level moves one step at a time: up on caught failures,
// down on successful top-level operations. Higher levels disable tools,
// then advanced context features, and finally substitute canned responses
// for model output.
//
// Degradation is shared across conversation threads and safe for
// concurrent use.
type Degradation struct {
	mu     sync.Mutex
	level  int
	logger *slog.Logger
}

// NewDegradation creates a Degradation manager at level 0.
// A nil logger defaults to slog.Default().
func NewDegradation(logger *slog.Logger) *Degradation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Degradation{logger: logger}
}

// Level returns the current degradation level in [0, MaxDegradationLevel].
func (d *Degradation) Level() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// Increase raises the level by one, clamped at MaxDegradationLevel.
func (d *Degradation) Increase() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.level < MaxDegradationLevel {
		d.level++
		d.logger.Warn("increased degradation level", slog.Int("level", d.level))
	}
}

// Decrease lowers the level by one, clamped at 0.
func (d *Degradation) Decrease() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.level > 0 {
		d.level--
		d.logger.Info("decreased degradation level", slog.Int("level", d.level))
	}
}

// AllowTools reports whether tool execution is permitted at the current
// level.
func (d *Degradation) AllowTools() bool {
	return d.Level() < 2
}

// AllowAdvanced reports whether advanced context features (planning,
// summarization enrichment) are permitted at the current level.
func (d *Degradation) AllowAdvanced() bool {
	return d.Level() < 1
}

// SimplifiedResponse returns the canned response for the current level,
// or "" at level 0 (no degradation - use the real response).
func (d *Degradation) SimplifiedResponse(userInput string) string {
	switch d.Level() {
	case 1:
		excerpt := userInput
		if len(excerpt) > 50 {
			excerpt = excerpt[:50]
		}
		return fmt.Sprintf("I'm experiencing some technical difficulties. Let me try to help you with: %s...", excerpt)
	case 2:
		return "I'm having trouble processing your request right now. Could you try rephrasing or asking something simpler?"
	case 3:
		return "I'm currently experiencing technical issues. Please try again later or contact support."
	default:
		return ""
	}
}
