package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"folio/internal/core/contracts"
	"folio/internal/core/domain"
)

// FanoutWorker drains the chat event stream and republishes each event
// on the author's per-user live channel. The database is already the
// source of truth by the time an event reaches the stream, so a failed
// fan-out costs nothing but latency until the next poll.
type FanoutWorker struct {
	log      *slog.Logger
	events   contracts.EventBus
	conGroup string
}

func NewFanoutWorker(
	log *slog.Logger,
	events contracts.EventBus,
	conGroup string,
) contracts.AsyncWorker {
	return &FanoutWorker{
		log:      log,
		events:   events,
		conGroup: conGroup,
	}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	if err := w.events.Subscribe(ctx, w.conGroup, w.ProcessEvent); err != nil {
		return err
	}
	w.log.InfoContext(ctx, "worker - run - subscribe to stream success", "group", w.conGroup)
	return nil
}

func (w *FanoutWorker) ProcessEvent(
	ctx context.Context,
	eventID string,
	raw []byte,
) error {
	var ev domain.ChatEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		w.log.Error("worker - process event - wrong payload", "event_id", eventID)
		return err
	}
	if err := w.events.Broadcast(ctx, ev.UserID.String(), raw); err != nil {
		w.log.ErrorContext(ctx, "worker - process event - broadcast failed", "event_id", eventID)
		return err
	}
	// Acknowledge (XACK): the broadcast is out, remove the event from
	// the pending entries list.
	if err := w.events.Acknowledge(ctx, w.conGroup, eventID); err != nil {
		w.log.ErrorContext(ctx, "worker - process event - acknowledge failed", "event_id", eventID)
		return err
	}
	// Delete (XDEL) keeps the stream memory-efficient. The event is
	// already processed and ACKed, so a failure here only logs.
	if err := w.events.Delete(ctx, eventID); err != nil {
		w.log.ErrorContext(ctx, "worker - process event - delete failed", "event_id", eventID)
	}
	w.log.InfoContext(ctx, "worker - process event - fan-out success", "event_id", eventID)
	return nil
}
