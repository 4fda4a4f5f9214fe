package redis

import "strings"

// Every key lives under "qd:" so a shared Redis can be flushed per app.
const (
	keyNamespace      = "qd"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	revokedPrefix     = "revoked"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

func (c *Client) RevokedTokenKey(tokenID string) string {
	return joinKey(revokedPrefix, tokenID)
}

// joinKey skips blank parts, so "qd:idempotency:scope" never ends in ':'.
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
