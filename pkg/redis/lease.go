package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease scripts only touch the key while it still holds the caller's token,
// so a holder whose lease expired cannot clobber the next one.
var (
	releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// AcquireLease claims key for token until ttl passes.
func (c *Client) AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, token, ttl)
}

// ReleaseLease deletes key if token still owns it and reports whether it did.
func (c *Client) ReleaseLease(ctx context.Context, key, token string) (bool, error) {
	if c == nil || c.scripter == nil {
		return false, errNotConnected
	}
	n, err := releaseLease.Run(ctx, c.scripter, []string{key}, token).Int64()
	return n == 1, err
}

// RenewLease pushes the expiry of an owned lease out to ttl from now.
func (c *Client) RenewLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if c == nil || c.scripter == nil {
		return false, errNotConnected
	}
	n, err := renewLease.Run(ctx, c.scripter, []string{key}, token, ttl.Milliseconds()).Int64()
	return n == 1, err
}
