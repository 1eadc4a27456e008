package policies

import "context"

// InboxStore remembers processed upstream deliveries.
type InboxStore interface {
	// Claim returns false when the event was already claimed by consumer.
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}
