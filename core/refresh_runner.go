package core

import (
	"context"
	"time"
)

const (
	defaultFetchMaxBackoff = 2 * time.Second
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = DefaultFetchBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultFetchMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type fetchRunResult struct {
	Grant    TokenGrant
	Attempts int
}

// fetchWithRetry calls the fetcher once plus up to Fetch.Retries more times.
// Each attempt gets its own Fetch.Timeout deadline. Failures that
// IsRetryable rejects end the run immediately.
func (m *Manager) fetchWithRetry(ctx context.Context) (fetchRunResult, error) {
	maxAttempts := 1 + m.config.Fetch.Retries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := m.config.Fetch.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		grant, err := m.fetcher.FetchToken(attemptCtx)
		cancel()
		if err == nil {
			return fetchRunResult{Grant: grant, Attempts: attempt}, nil
		}
		lastErr = err

		if attempt == maxAttempts || !IsRetryable(err) || ctx.Err() != nil {
			return fetchRunResult{Attempts: attempt}, lastErr
		}

		m.observer.Log(ctx, "warn", "token fetch attempt failed, retrying", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
		delay := DefaultFetchBackoff
		if m.backoff != nil {
			delay = m.backoff.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return fetchRunResult{Attempts: attempt}, waitErr
		}
	}
	return fetchRunResult{Attempts: maxAttempts}, lastErr
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
