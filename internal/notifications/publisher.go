package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"threadline/internal/middleware"
	"threadline/internal/observability"
)

const publishTimeout = 2 * time.Second

// Event is the frame every listener receives.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publisher emits comment events. With Redis configured, events go through
// BroadcastChannel so that every instance's hub relays them; otherwise they
// go straight to the local hub.
type Publisher struct {
	hub      *Hub
	notifier *Notifier
}

// NewPublisher creates a Publisher. Either argument may be nil.
func NewPublisher(hub *Hub, notifier *Notifier) *Publisher {
	return &Publisher{hub: hub, notifier: notifier}
}

// Emit encodes and delivers one event. Failures are logged and counted,
// never returned.
func (p *Publisher) Emit(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(Event{Type: event, Payload: payload})
	if err != nil {
		observability.BroadcastFailures.WithLabelValues("encode").Inc()
		middleware.Logger.ErrorContext(ctx, "failed to encode event",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.notifier.Enabled() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		err := p.notifier.PublishBroadcast(pubCtx, data)
		if err == nil {
			return
		}
		observability.BroadcastFailures.WithLabelValues("redis").Inc()
		middleware.Logger.WarnContext(ctx, "failed to publish event, delivering locally",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	if p.hub != nil {
		p.hub.BroadcastAll(data)
	}
}
