package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which visitors have polled recently. Purely
// decorative data for the admin roster, never a delivery contract.
type PresenceStore interface {
	// Touch marks a visitor as recently seen.
	Touch(ctx context.Context, userID string, ttl time.Duration) error
	// Online returns the visitors currently considered active.
	Online(ctx context.Context) ([]string, error)
}
