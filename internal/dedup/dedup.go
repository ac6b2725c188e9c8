/**
 * @description
 * Event de-duplication for the webhook receiver. A delivery first reserves its
 * event id, the caller applies the event, and then either commits the id (so
 * later deliveries are ignored) or releases it (so the sender's retry is
 * processed).
 *
 * @notes
 * - A pending reservation counts as a duplicate. Two concurrent deliveries of
 *   the same id never both apply.
 * - Committed ids are remembered for the configured TTL, 24 hours by default.
 */
package dedup

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL is how long a processed event id is remembered.
const DefaultTTL = 24 * time.Hour

// Store tracks event ids that have been seen.
type Store interface {
	// Reserve claims eventID. It returns false when the id is already reserved
	// or committed.
	Reserve(ctx context.Context, eventID string) (bool, error)
	// Commit marks a reserved id as processed for the full TTL.
	Commit(ctx context.Context, eventID string) error
	// Release drops a reservation so a later delivery may retry.
	Release(ctx context.Context, eventID string) error
}

// Purger is implemented by stores that evict expired ids on demand.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

func normalizeEventID(eventID string) string {
	return strings.TrimSpace(eventID)
}
