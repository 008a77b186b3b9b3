// Package retry applies one bounded retry policy to page fetches, detail
// fetches and probes.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tdh8316/rosterscan/internal/failure"
)

type Strategy string

const (
	Constant    Strategy = "constant"
	Exponential Strategy = "exponential"
)

// Action is what the caller does once retries are exhausted.
type Action string

const (
	Skip  Action = "skip"
	Abort Action = "abort"
)

type Policy struct {
	MaxRetries   int
	Backoff      Strategy
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	OnExhaustion Action
}

func Default() Policy {
	return Policy{
		MaxRetries:   2,
		Backoff:      Exponential,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		OnExhaustion: Skip,
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return &failure.ConfigError{Field: "max_retries", Message: "must not be negative"}
	}
	switch p.Backoff {
	case Constant, Exponential, "":
	default:
		return &failure.ConfigError{Field: "backoff", Message: fmt.Sprintf("unknown strategy %q", p.Backoff)}
	}
	switch p.OnExhaustion {
	case Skip, Abort, "":
	default:
		return &failure.ConfigError{Field: "on_exhaustion", Message: fmt.Sprintf("unknown action %q", p.OnExhaustion)}
	}
	return nil
}

// ParseAction accepts "skip" or "abort" in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Skip, Abort:
		return a, nil
	default:
		return "", &failure.ConfigError{Field: "on_exhaustion", Message: fmt.Sprintf("unknown action %q", s)}
	}
}

func (p Policy) backOff() backoff.BackOff {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	var b backoff.BackOff
	switch p.Backoff {
	case Constant:
		b = backoff.NewConstantBackOff(base)
	default:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = base
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	}

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// Notify is called before each wait with the error that caused the retry.
type Notify func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, returns a non-retryable error, the policy
// runs out of retries, or ctx is done. It returns the number of attempts.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	return p.DoNotify(ctx, op, nil)
}

func (p Policy) DoNotify(ctx context.Context, op func(attempt int) error, notify Notify) (int, error) {
	attempts := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(attempts)
		if err != nil && !failure.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(err, attempts, wait)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(p.backOff(), ctx), n)
	return attempts, err
}
