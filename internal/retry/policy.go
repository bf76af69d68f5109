package retry

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/warcbuilder/internal/config"
)

// Policy describes how often and how patiently a failed request is retried.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // upper bound for any delay
	MaxRetries int           // attempts after the first; zero disables retries
}

// DefaultPolicy sends a request once. Its delays apply when MaxRetries is raised.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second}
}

// NewPolicy overlays the given values on DefaultPolicy. Non-positive
// durations, a negative retry count and unknown modes keep the default.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	p.Initial = positive(initial, p.Initial)
	p.Max = positive(maxDelay, p.Max)
	p.Initial = min(p.Initial, p.Max)
	p.MaxRetries = max(maxRetries, p.MaxRetries)
	return p
}

// FromConfig builds the policy for analysis service requests.
func FromConfig(c config.RetryConfig) Policy {
	return NewPolicy(c.Backoff, c.InitialDelay, c.MaxDelay, c.MaxRetries)
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Delay returns the wait before retry n (the first retry is 1), capped at Max.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial << (n - 1)
		if d <= 0 || d>>(n-1) != p.Initial {
			return p.Max
		}
	default:
		d = p.Initial * time.Duration(n)
	}
	return min(d, p.Max)
}

// Validate reports a policy that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.New("retry: initial delay must be positive")
	case p.Max <= 0:
		return errors.New("retry: max delay must be positive")
	case p.MaxRetries < 0:
		return errors.New("retry: max retries must not be negative")
	}
	return nil
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the retries are
// exhausted or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= p.MaxRetries {
			return err
		}
	}
}
