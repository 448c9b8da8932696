package bob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opsbuddy/bob/pkg/bob/llm"
	"github.com/opsbuddy/bob/pkg/bob/memory"
	"github.com/opsbuddy/bob/pkg/bob/resilience"
	"github.com/opsbuddy/bob/pkg/bob/tools"
	"github.com/opsbuddy/bob/pkg/workflow"
)

// maxTurnSteps caps node visits per turn invocation; exceeding it ends
// the turn with whatever response was last produced, it is not a
// failure.
const maxTurnSteps = 50

// Agent ties the workflow, model client, tool registry, conversation
// store, and resilience layer together per conversation thread.
//
// Construct with New; all collaborators are injected, there is no
// package-level instance.
type Agent struct {
	cfg         Config
	client      llm.Client
	registry    *tools.Registry
	store       memory.Store
	retrier     *resilience.Retrier
	degradation *resilience.Degradation
	analyzer    *Analyzer
	graph       *workflow.CompiledGraph[*State]
	logger      *slog.Logger

	// Turns on the same thread are serialized; state is read-modify-
	// written as a whole record.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option customizes Agent construction.
type Option func(*Agent)

// WithClient injects a model client, replacing the default Anthropic
// client. Used by tests and example programs.
func WithClient(client llm.Client) Option {
	return func(a *Agent) { a.client = client }
}

// WithStore injects a conversation store. Defaults to in-memory.
func WithStore(store memory.Store) Option {
	return func(a *Agent) { a.store = store }
}

// WithRegistry injects a tool registry. Defaults to the built-in tools.
func WithRegistry(registry *tools.Registry) Option {
	return func(a *Agent) { a.registry = registry }
}

// WithLogger injects the logger used by the agent and its workflow.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New constructs an Agent from cfg. Without WithClient an Anthropic
// client is built from the config (requiring an API key); without
// WithStore conversations live in memory.
func New(cfg Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.client == nil {
		client, err := llm.NewAnthropicClient(cfg.APIKey, cfg.BaseURL,
			llm.WithModel(cfg.Model),
			llm.WithMaxTokens(cfg.MaxTokens),
			llm.WithTemperature(cfg.Temperature),
		)
		if err != nil {
			return nil, fmt.Errorf("create model client: %w", err)
		}
		a.client = client
	}
	if a.store == nil {
		a.store = memory.NewInMemoryStore()
	}
	if a.registry == nil {
		a.registry = tools.NewBuiltinRegistry(cfg.NotesDir)
	}

	a.retrier = resilience.NewRetrier(resilience.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		MaxDelay:   cfg.RetryMaxDelay,
		Factor:     2.0,
		Jitter:     true,
	}, a.logger)
	a.degradation = resilience.NewDegradation(a.logger)
	a.analyzer = NewAnalyzer(a.client, cfg, a.logger)

	graph, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}
	a.graph = graph

	return a, nil
}

// Chat sends one message on a thread and returns the response text. It
// never returns an error: total failure escalates degradation and
// yields a simplified response.
func (a *Agent) Chat(ctx context.Context, message, threadID string) string {
	unlock := a.lockThread(threadID)
	defer unlock()

	state, err := a.loadOrCreate(ctx, threadID, message, false)
	if err != nil {
		a.logger.Error("load conversation failed", "thread_id", threadID, "error", err)
		return a.failedChat(message)
	}

	wfCtx := workflow.NewContext(ctx,
		workflow.WithLogger(a.logger.With("thread_id", threadID)),
		workflow.WithRunID(threadID),
	)

	result, err := a.graph.Run(wfCtx, state, workflow.WithMaxSteps(maxTurnSteps))
	if err != nil {
		// Step-ceiling and cancellation errors still carry the last
		// state; the turn is terminal, not fatal.
		if recovered := terminalState(err); recovered != nil {
			result = recovered
		} else {
			a.logger.Error("chat workflow failed", "thread_id", threadID, "error", err)
			return a.failedChat(message)
		}
	}

	if err := a.persist(ctx, threadID, result); err != nil {
		a.logger.Error("persist conversation failed", "thread_id", threadID, "error", err)
	}

	text := result.LastAssistantText()
	if text == "" {
		if text = result.ResponseText; text == "" {
			text = "No response generated."
		}
	}

	a.degradation.Decrease()
	return text
}

// failedChat is the total-failure path: escalate degradation and return
// a canned response.
func (a *Agent) failedChat(message string) string {
	a.degradation.Increase()
	if text := a.degradation.SimplifiedResponse(message); text != "" {
		return text
	}
	return "I'm experiencing technical difficulties. Please try again later."
}

// Update is one node-granularity progress event from StreamChat.
type Update struct {
	// NodeID names the node that just completed. Empty on the final
	// event of a run that failed before any node ran.
	NodeID string

	// State is a snapshot after the node completed. Nil on error-only
	// events.
	State *State

	// Done marks the final event; Err carries the terminal error, if
	// any.
	Done bool
	Err  error
}

// StreamChat sends a message in multi-turn mode and emits an update as
// each workflow node completes. The channel closes when the turn ends;
// abandon consumption by cancelling ctx. The final state is persisted
// when the stream completes.
func (a *Agent) StreamChat(ctx context.Context, message, threadID string) <-chan Update {
	out := make(chan Update)

	go func() {
		defer close(out)

		unlock := a.lockThread(threadID)
		defer unlock()

		state, err := a.loadOrCreate(ctx, threadID, message, true)
		if err != nil {
			out <- Update{Done: true, Err: err}
			return
		}

		wfCtx := workflow.NewContext(ctx,
			workflow.WithLogger(a.logger.With("thread_id", threadID)),
			workflow.WithRunID(threadID),
		)

		// The engine snapshots each update via Clone before it crosses the
		// channel; nodes mutate *State in place while the consumer reads.
		var last *State
		for u := range a.graph.Stream(wfCtx, state,
			workflow.WithMaxSteps(maxTurnSteps),
			workflow.WithSnapshot((*State).Clone),
		) {
			if u.State != nil {
				last = u.State
			}
			if u.Done {
				if u.Err != nil {
					if recovered := terminalState(u.Err); recovered != nil {
						last = recovered
						u.Err = nil
					}
				}
				if last != nil {
					if err := a.persist(ctx, threadID, last); err != nil {
						a.logger.Error("persist conversation failed", "thread_id", threadID, "error", err)
					}
				}
				select {
				case out <- Update{NodeID: u.NodeID, State: last, Done: true, Err: u.Err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- Update{NodeID: u.NodeID, State: u.State}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// History returns the conversation log for a thread, empty when the
// thread is unknown.
func (a *Agent) History(ctx context.Context, threadID string) []llm.Message {
	state, ok := a.load(ctx, threadID)
	if !ok {
		return []llm.Message{}
	}
	return state.Messages
}

// Summary returns a model-generated summary of the thread, or a
// sentinel when the thread is unknown.
func (a *Agent) Summary(ctx context.Context, threadID string) string {
	state, ok := a.load(ctx, threadID)
	if !ok {
		return "No conversation found."
	}
	return a.analyzer.Summarize(ctx, state)
}

// Analysis returns the context analysis for a thread; the zero value
// when the thread is unknown.
func (a *Agent) Analysis(ctx context.Context, threadID string) Analysis {
	state, ok := a.load(ctx, threadID)
	if !ok {
		return Analysis{}
	}
	return a.analyzer.AnalyzeContext(state)
}

// ClearConversation removes the persisted state for a thread.
func (a *Agent) ClearConversation(ctx context.Context, threadID string) bool {
	unlock := a.lockThread(threadID)
	defer unlock()

	if err := a.store.Delete(ctx, threadID); err != nil {
		a.logger.Error("clear conversation failed", "thread_id", threadID, "error", err)
		return false
	}
	return true
}

// Threads lists thread IDs with persisted conversations.
func (a *Agent) Threads(ctx context.Context) ([]string, error) {
	return a.store.List(ctx)
}

// DegradationLevel exposes the current degradation level for
// introspection (health endpoints, tests).
func (a *Agent) DegradationLevel() int {
	return a.degradation.Level()
}

// lockThread serializes turns per thread id.
func (a *Agent) lockThread(threadID string) func() {
	a.locksMu.Lock()
	lock, ok := a.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[threadID] = lock
	}
	a.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// loadOrCreate fetches the thread's state and primes it for a new turn,
// or creates a fresh state when the thread is unknown.
func (a *Agent) loadOrCreate(ctx context.Context, threadID, message string, multiTurn bool) (*State, error) {
	raw, found, err := a.store.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var state *State
	if found {
		state = &State{}
		if err := json.Unmarshal(raw, state); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		state.UserInput = message
		state.ShouldEnd = false
	} else {
		state = NewInitialState(message)
	}
	state.ContinueConversation = multiTurn
	return state, nil
}

// load fetches a thread's state without priming a turn.
func (a *Agent) load(ctx context.Context, threadID string) (*State, bool) {
	raw, found, err := a.store.Get(ctx, threadID)
	if err != nil || !found {
		if err != nil {
			a.logger.Error("load state failed", "thread_id", threadID, "error", err)
		}
		return nil, false
	}
	state := &State{}
	if err := json.Unmarshal(raw, state); err != nil {
		a.logger.Error("decode state failed", "thread_id", threadID, "error", err)
		return nil, false
	}
	return state, true
}

// persist writes the thread's state back to the store.
func (a *Agent) persist(ctx context.Context, threadID string, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return a.store.Put(ctx, threadID, raw)
}

// terminalState extracts the last state from terminal-not-fatal engine
// errors (step ceiling, cancellation mid-turn).
func terminalState(err error) *State {
	var maxSteps *workflow.MaxStepsError
	if errors.As(err, &maxSteps) {
		if state, ok := maxSteps.State.(*State); ok {
			return state
		}
	}
	var cancelled *workflow.CancellationError
	if errors.As(err, &cancelled) {
		if state, ok := cancelled.State.(*State); ok {
			return state
		}
	}
	return nil
}
