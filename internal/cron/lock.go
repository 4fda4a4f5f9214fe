package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/quotedesk-backend/pkg/instance"
)

const defaultLeaseTTL = 15 * time.Minute

// ErrLeaseLost means another replica took over the cycle lease mid-run.
var ErrLeaseLost = errors.New("cron lease lost")

// Lock gives one cron-worker replica a time-bounded lease per cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	// Renew extends a held lease; false means it expired and was taken.
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// leaseStore is implemented by pkg/redis.Client.
type leaseStore interface {
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, token string) (bool, error)
}

// RedisLock stores "<instance>/<uuid>" under key so operators can see which
// replica is running maintenance.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock needs a lease store")
	case key == "":
		return nil, errors.New("cron lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token := fmt.Sprintf("%s/%s", instance.GetID(), uuid.NewString())
	ok, err := l.store.AcquireLease(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return false, nil
	}
	ok, err := l.store.RenewLease(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("renew %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
	}
	return ok, nil
}

// Release is a no-op when the lease already passed to someone else.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.ReleaseLease(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// Holder is the token of the lease this replica holds, or "".
func (l *RedisLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}
