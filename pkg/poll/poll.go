// Package poll runs bounded, cancellable polling loops. It is the fallback
// used when a push notification is unavailable or late.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultMaxWait  = 45 * time.Second
)

// ErrTimeout is returned when the policy ceiling is reached before the
// condition holds. Callers should treat it as "may still be processing".
var ErrTimeout = errors.New("poll: condition not met before deadline")

// Policy bounds a polling loop. MaxAttempts of zero means no attempt limit,
// MaxWait still applies.
type Policy struct {
	Interval    time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

// DefaultPolicy polls every 2s for up to 45s.
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxWait: DefaultMaxWait}
}

func (p Policy) withDefaults() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MaxWait <= 0 {
		p.MaxWait = DefaultMaxWait
	}
	return p
}

// CheckFunc reports whether the awaited condition holds. A non-nil error
// stops polling immediately.
type CheckFunc func(ctx context.Context) (bool, error)

// Until calls check immediately and then once per interval until it reports
// done, fails, the policy is exhausted or ctx ends.
func Until(ctx context.Context, p Policy, check CheckFunc) error {
	p = p.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, p.MaxWait)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return timeoutOr(ctx)
			}
			return err
		}
		if done {
			return nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return timeoutOr(ctx)
		case <-ticker.C:
		}
	}
}

// timeoutOr maps our own MaxWait deadline to ErrTimeout and passes through a
// cancellation from the parent.
func timeoutOr(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// Task is a polling loop running in the background.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start runs Until in its own goroutine. Cancel stops it; Done closes when it
// has fully exited, so no timer outlives the task.
func Start(ctx context.Context, p Policy, check CheckFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		err := Until(ctx, p, check)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
	return t
}

func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the loop result once Done is closed, nil before that.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task exits and returns its result.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}
