// Package retry wraps cenkalti/backoff with the bounded doubling policy used for every
// outbound call the watcher makes.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded exponential backoff. Retries is the number of attempts
// after the first; the n-th retry waits Initial * 2^n.
type Policy struct {
	Retries int
	Initial time.Duration
	Max     time.Duration
}

// Default mirrors the watcher's historical schedule: 1s, 2s, 4s, ...
func Default(retries int) Policy {
	return Policy{Retries: retries, Initial: time.Second, Max: time.Minute}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or the policy is exhausted.
// The final error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn(name+" failed, retrying",
			"attempt", attempt,
			"of", p.Retries+1,
			"wait", wait,
			"err", err,
		)
	}
	res, err := backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
	if err != nil {
		logger.Error(name+" gave up", "attempts", attempt, "err", err)
		return res, err
	}
	if attempt > 1 {
		logger.Info(name+" succeeded after retry", "attempts", attempt)
	}
	return res, nil
}
