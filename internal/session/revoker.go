package session

import (
	"context"
	"time"
)

// Revoker remembers revoked session JTIs until their natural expiry so that
// logout actually invalidates the outstanding token instead of only clearing
// the cookie client-side.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
