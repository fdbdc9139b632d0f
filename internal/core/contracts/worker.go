package contracts

import "context"

type AsyncWorker interface {
	// Run starts the consumer loop.
	Run(ctx context.Context) error
	// ProcessEvent handles one event from the stream:
	// fan out, acknowledge, delete.
	ProcessEvent(ctx context.Context, eventID string, rawData []byte) error
}
