package services

import (
	"context"
	"errors"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
)

// ErrResultNotFound is returned by ResultStore.Get when no live entry exists
// for a token. Expired entries are reported the same way.
var ErrResultNotFound = errors.New("result not found")

// ResultStore is a transient key-value store of result envelopes keyed by
// session token. Implementations must be safe for concurrent use; entries are
// replaced whole and never mutated in place.
type ResultStore interface {
	// Put inserts or overwrites the entry for token. ttl <= 0 means no expiry.
	Put(ctx context.Context, token string, envelope *models.ResultEnvelope, ttl time.Duration) error

	// Get returns the live envelope for token or ErrResultNotFound. An expired
	// entry is purged before ErrResultNotFound is returned.
	Get(ctx context.Context, token string) (*models.ResultEnvelope, error)

	// Delete removes the entry for token. Deleting a missing entry is not an error.
	Delete(ctx context.Context, token string) error

	// PurgeExpired removes every expired entry and reports how many were removed
	PurgeExpired(ctx context.Context) (int, error)
}

func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
