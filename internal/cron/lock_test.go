package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLeases struct {
	owners map[string]string
	fail   error
}

func newMemLeases() *memLeases { return &memLeases{owners: map[string]string{}} }

func (m *memLeases) AcquireLease(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	if m.fail != nil {
		return false, m.fail
	}
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key] = token
	return true, nil
}

func (m *memLeases) RenewLease(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	return m.owners[key] == token, nil
}

func (m *memLeases) ReleaseLease(_ context.Context, key, token string) (bool, error) {
	if m.owners[key] != token {
		return false, nil
	}
	delete(m.owners, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemLeases()
	a, err := NewRedisLock(store, "qd:cron:lock", 0)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "qd:cron:lock", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.Contains(a.Holder(), "/"), "token carries instance and nonce")

	ok, _ = b.Acquire(ctx)
	assert.False(t, ok, "second replica must wait")

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok)
}

func TestRedisLockLostLease(t *testing.T) {
	store := newMemLeases()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)

	// expiry followed by another replica's acquire
	store.owners["k"] = "other/1"

	renewed, err := lock.Renew(ctx)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Empty(t, lock.Holder())

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other/1", store.owners["k"], "release must not drop a foreign lease")
}

func TestRedisLockWrapsStoreErrors(t *testing.T) {
	store := newMemLeases()
	store.fail = errors.New("connection refused")
	lock, _ := NewRedisLock(store, "k", 0)
	_, err := lock.Acquire(context.Background())
	assert.ErrorIs(t, err, store.fail)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemLeases(), "", 0)
	assert.Error(t, err)
}
