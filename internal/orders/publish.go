package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher hands an event to the bus. Delivery is asynchronous and
// best-effort; a lost event never rolls back the state change behind it.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

const eventVersion = 1

type traceKey struct{}

// WithTraceID stores the request id stamped on events raised by ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func NewEnvelope(ctx context.Context, producer, eventType, orderID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       TraceID(ctx),
		CorrelationID: orderID,
		Payload:       raw,
	}, nil
}

// Emit wraps payload in an envelope and publishes it keyed by order id.
func Emit(ctx context.Context, p Publisher, producer, topic, eventType, orderID string, payload any) error {
	if p == nil {
		return nil
	}
	ev, err := NewEnvelope(ctx, producer, eventType, orderID, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.Publish(topic, PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	)
	return nil
}
