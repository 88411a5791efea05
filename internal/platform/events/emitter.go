package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mediledger/mediledger/internal/platform/metrics"
)

// Emitter publishes events after the store write has committed. A failed
// publish is logged and counted; it never fails the caller's operation.
type Emitter struct {
	pub     Publisher
	metrics *metrics.Collector
}

func NewEmitter(pub Publisher, m *metrics.Collector) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	return &Emitter{pub: pub, metrics: m}
}

// Emit is safe to call on a nil Emitter.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil {
		return
	}
	err := e.pub.Publish(ctx, evt)
	e.metrics.EventPublished(string(evt.Type), err)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("event_id", evt.ID.String()).
			Str("event_type", string(evt.Type)).
			Msg("event publish failed")
	}
}
