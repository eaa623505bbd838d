package configstore

import (
	"context"

	"github.com/remindly/expiry-notifier/internal/domain"
)

// Store is the key-value credential/config provider. Get returns
// domain.ErrConfigMissing for absent keys; callers treat absence as a
// recoverable condition. Every call re-fetches — there is no caching layer,
// so credential rotations in the store take effect immediately.
// The pgx implementation is in pg_store.go; tests use the hand-written mock.
type Store interface {
	Get(ctx context.Context, key string) (*domain.CredentialRecord, error)
}
