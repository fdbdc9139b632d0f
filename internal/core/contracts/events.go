package contracts

import "context"

// EventBus carries committed chat events from the write path to anything
// that wants to react faster than the next poll. Delivery is best-effort.
type EventBus interface {
	// Producer side (chat write service)
	Publish(ctx context.Context, payload []byte) error
	// Consumer side (fan-out worker): reliable reading from the stream.
	Subscribe(ctx context.Context, group string, handler func(ctx context.Context, eventID string, data []byte) error) error
	// Acknowledge tells the stream the event was processed.
	Acknowledge(ctx context.Context, group, eventID string) error
	// Delete removes a processed event from the stream.
	Delete(ctx context.Context, eventID string) error
	// Broadcast pushes raw data on the per-user live channel.
	Broadcast(ctx context.Context, userID string, data []byte) error
}
