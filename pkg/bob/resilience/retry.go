package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the starting backoff duration.
	BaseDelay time.Duration

	// MaxDelay is the maximum backoff duration.
	MaxDelay time.Duration

	// Factor is the multiplier applied to backoff after each attempt.
	Factor float64

	// Jitter adds up to 10% random jitter to each delay when true.
	Jitter bool

	// RetryOn is the set of error kinds eligible for retry.
	// Nil selects the default set (api, rate limit, network, timeout).
	RetryOn []Kind
}

// DefaultPolicy is the standard retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Factor:     2.0,
		Jitter:     true,
	}
}

// retryable reports whether the kind is in the policy's retry set.
// Validation and unknown errors never retry by default; retrying them
// would just repeat the same failure.
func (p Policy) retryable(kind Kind) bool {
	set := p.RetryOn
	if set == nil {
		set = []Kind{KindAPI, KindRateLimit, KindNetwork, KindTimeout}
	}
	for _, k := range set {
		if k == kind {
			return true
		}
	}
	return false
}

// delay returns the backoff for a 0-indexed attempt, capped at MaxDelay,
// with optional jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d += rand.Float64() * d * 0.1
	}
	return time.Duration(d)
}

// Failure is one recorded failed attempt.
type Failure struct {
	Timestamp time.Time
	Operation string
	Kind      Kind
	Message   string
	Attempt   int
}

// Retrier runs operations under a retry policy with an optional fallback.
// It replaces decorator-style retry wrapping with an explicit object so
// the control flow stays visible at the call site.
//
// A Retrier is safe for concurrent use; backoff sleeps hold no locks.
type Retrier struct {
	policy Policy
	logger *slog.Logger

	mu      sync.Mutex
	history []Failure
}

// maxHistory bounds the retained failure records.
const maxHistory = 100

// NewRetrier creates a Retrier with the given policy.
// A nil logger defaults to slog.Default().
func NewRetrier(policy Policy, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{policy: policy, logger: logger}
}

// History returns a copy of the recorded failures, oldest first.
func (r *Retrier) History() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.history))
	copy(out, r.history)
	return out
}

// record logs and retains one failed attempt.
func (r *Retrier) record(name string, err error, attempt int) Kind {
	kind := Classify(err)

	r.mu.Lock()
	r.history = append(r.history, Failure{
		Timestamp: time.Now().UTC(),
		Operation: name,
		Kind:      kind,
		Message:   err.Error(),
		Attempt:   attempt,
	})
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
	r.mu.Unlock()

	r.logger.Warn("operation failed",
		slog.String("operation", name),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
		slog.Int("attempt", attempt+1),
	)
	return kind
}

// Do invokes primary under the retrier's policy.
//
// On failure the error is classified and recorded; kinds in the retry set
// are retried with capped exponential backoff until the policy is
// exhausted, other kinds fall through immediately. When attempts are
// exhausted the fallback (if non-nil) runs once; its own error, if any,
// is returned in place of the primary's. Recovery after at least one
// retry is logged distinctly from first-try success.
func Do[T any](ctx context.Context, r *Retrier, name string, primary func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		result, err := primary(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("operation recovered",
					slog.String("operation", name),
					slog.Int("retries", attempt),
					slog.String("user_message", RecoveryMessage()),
				)
			}
			return result, nil
		}

		lastErr = err
		kind := r.record(name, err, attempt)

		if !r.policy.retryable(kind) {
			break
		}

		if attempt < r.policy.MaxRetries {
			delay := r.policy.delay(attempt)
			r.logger.Info("retrying operation",
				slog.String("operation", name),
				slog.Duration("delay", delay),
				slog.String("user_message", FeedbackMessage(kind, true)),
			)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if fallback != nil {
		r.logger.Info("primary exhausted, trying fallback",
			slog.String("operation", name),
			slog.String("user_message", FallbackMessage()),
		)
		result, err := fallback(ctx)
		if err != nil {
			r.logger.Error("fallback failed",
				slog.String("operation", name),
				slog.String("error", err.Error()),
			)
			return zero, err
		}
		return result, nil
	}

	r.logger.Error("all attempts failed",
		slog.String("operation", name),
	)
	return zero, lastErr
}
