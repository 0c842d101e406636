package assign

import (
	"context"

	kafkax "github.com/ariefcatur/go-flowershop-orders/internal/kafka"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TriggerEvents maps order events to the job that should react early.
var TriggerEvents = map[string]string{
	orders.EventOrderPaid:  JobFlorists,
	orders.EventOrderReady: JobCouriers,
}

// TriggerTopics are the topics carrying TriggerEvents.
var TriggerTopics = []string{orders.TopicOrderPaid, orders.TopicOrderReady}

// TriggerHandler consumes order events and asks the runner for an early
// run. The ticker still covers anything a lost event would miss, so
// undecodable messages are logged and committed.
func TriggerHandler(r *Runner, log *zap.Logger) kafkax.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, m kafkago.Message) error {
		eventType := kafkax.Header(m, "x-event-type")
		if eventType == "" {
			var ev orders.Envelope
			if err := kafkax.UnmarshalEnvelope(m.Value, &ev); err != nil {
				log.Warn("skip undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
				return nil
			}
			eventType = ev.EventType
		}
		if name, ok := TriggerEvents[eventType]; ok {
			log.Debug("early run requested", zap.String("job", name), zap.ByteString("order_id", m.Key))
			r.Trigger(name)
		}
		return nil
	}
}
