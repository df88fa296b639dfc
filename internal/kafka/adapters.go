package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/segmentio/kafka-go"
	"log/slog"
	"strconv"
)

// OrderEvents mempublikasikan event lifecycle order ke orders.TopicOrderEvents.
type OrderEvents struct {
	Producer *Producer
}

func (o OrderEvents) PublishOrderEvent(ctx context.Context, env orders.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return o.Producer.Publish(ctx, orders.TopicOrderEvents, orders.PartitionKey(env.CorrelationID), value, envelopeHeaders(env)...)
}

func envelopeHeaders(env orders.Envelope) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(env.EventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	}
}

// ReplySink mengirim instruksi balasan ke topic outbound, key = chat ID
// supaya balasan satu chat tetap berurutan.
type ReplySink struct {
	Producer *Producer
	Topic    string
}

func (s ReplySink) Send(ctx context.Context, r chat.Reply) error {
	value, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.Producer.Publish(ctx, s.Topic, []byte(r.ChatID), value)
}

// InboundHandler mengubah pesan kafka menjadi chat.Event. Pesan yang tidak
// bisa dibaca di-commit (dibuang) supaya tidak memblok partition.
func InboundHandler(dispatch func(ctx context.Context, ev chat.Event) error, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, m kafka.Message) error {
		ev, err := DecodeEvent(m.Value)
		if err != nil {
			log.Warn("drop undecodable inbound message", "topic", m.Topic, "offset", m.Offset, "err", err)
			return nil
		}
		if ev.ID == "" {
			// redelivery dari offset yang sama tetap punya ID yang sama
			ev.ID = fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
		}
		if err := dispatch(ctx, ev); err != nil {
			if errors.Is(err, chat.ErrInvalidEvent) {
				log.Warn("drop invalid inbound event", "event_id", ev.ID, "err", err)
				return nil
			}
			return err
		}
		return nil
	}
}
