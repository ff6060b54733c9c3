package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/modelmux/modelmux/pkg/errors"
	"github.com/modelmux/modelmux/pkg/types"
	"github.com/modelmux/modelmux/pkg/utils"
)

// Manager runs operations under a retry policy. Every capability
// decorator funnels through the one Execute implementation so the retry
// semantics cannot drift between capabilities.
type Manager struct {
	policy  types.RetryPolicy
	logger  *utils.Logger
	stats   Stats
	onRetry func(provider, operation string)
}

// OnRetry installs a callback invoked once per retry attempt, after the
// transient classification and before the backoff sleep.
func (m *Manager) OnRetry(fn func(provider, operation string)) {
	m.onRetry = fn
}

// Stats tracks retry counters. All fields are updated atomically.
type Stats struct {
	TotalCalls        int64 `json:"total_calls"`
	TotalRetries      int64 `json:"total_retries"`
	SuccessfulRetries int64 `json:"successful_retries"`
	ExhaustedRetries  int64 `json:"exhausted_retries"`
}

// NewManager creates a retry manager with the given policy.
func NewManager(policy types.RetryPolicy, logger *utils.Logger) *Manager {
	if policy.MaxAttempts < 1 {
		policy = types.DefaultRetryPolicy()
	}
	return &Manager{policy: policy, logger: logger}
}

// Policy returns the active policy.
func (m *Manager) Policy() types.RetryPolicy {
	return m.policy
}

// Execute runs op up to MaxAttempts times. Permanent errors and the
// model-not-available sentinel return immediately; transient errors are
// retried after the effective delay. After exhaustion the last transient
// error is returned so the registry can continue its fallback chain.
func (m *Manager) Execute(ctx context.Context, provider, operation string, op func(ctx context.Context) error) error {
	atomic.AddInt64(&m.stats.TotalCalls, 1)

	var last *errors.ProviderError
	for attempt := 0; attempt < m.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s %s cancelled: %w", provider, operation, err)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				atomic.AddInt64(&m.stats.SuccessfulRetries, 1)
				m.logger.WithProvider(provider).WithField("attempts", attempt+1).
					Info("Operation succeeded after retry")
			}
			return nil
		}

		if errors.IsModelNotAvailable(err) {
			// Availability is a dispatch signal, not a failure to retry.
			return err
		}

		classified := Classify(err, provider, operation)
		if !classified.Transient() {
			return classified
		}
		last = classified

		if attempt == m.policy.MaxAttempts-1 {
			break
		}

		delay := m.Delay(attempt)
		if classified.RetryAfter > 0 {
			delay = classified.RetryAfter
		}

		atomic.AddInt64(&m.stats.TotalRetries, 1)
		if m.onRetry != nil {
			m.onRetry(provider, operation)
		}
		m.logger.WithProvider(provider).
			WithField("operation", operation).
			WithField("attempt", attempt+1).
			WithField("delay", delay).
			WithError(classified).
			Info("Transient failure, retrying after delay")

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s %s retry cancelled: %w", provider, operation, err)
		}
	}

	atomic.AddInt64(&m.stats.ExhaustedRetries, 1)
	m.logger.WithProvider(provider).
		WithField("operation", operation).
		WithField("attempts", m.policy.MaxAttempts).
		WithError(last).
		Warn("Retries exhausted")
	return last
}

// Delay computes the backoff before retry attempt n (0-indexed):
// min(BaseDelay * 2^n, MaxDelay), with optional +-10% jitter.
func (m *Manager) Delay(attempt int) time.Duration {
	delay := m.policy.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= m.policy.MaxDelay {
			delay = m.policy.MaxDelay
			break
		}
	}
	if m.policy.MaxDelay > 0 && delay > m.policy.MaxDelay {
		delay = m.policy.MaxDelay
	}

	if m.policy.Jitter && delay > 0 {
		jitter := time.Duration(float64(delay) * 0.1 * (rand.Float64()*2 - 1))
		delay += jitter
	}

	if delay < 0 {
		delay = m.policy.BaseDelay
	}
	return delay
}

// GetStats returns a snapshot of the retry counters.
func (m *Manager) GetStats() Stats {
	return Stats{
		TotalCalls:        atomic.LoadInt64(&m.stats.TotalCalls),
		TotalRetries:      atomic.LoadInt64(&m.stats.TotalRetries),
		SuccessfulRetries: atomic.LoadInt64(&m.stats.SuccessfulRetries),
		ExhaustedRetries:  atomic.LoadInt64(&m.stats.ExhaustedRetries),
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
