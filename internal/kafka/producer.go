package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/segmentio/kafka-go"
)

// Producer writes domain events to one topic, keyed by aggregate id so events
// for the same conversation land on the same partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) Publish(ctx context.Context, event, key string, payload interface{}) error {
	b, err := json.Marshal(events.Envelope{Event: event, Key: key, Payload: payload})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   b,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "event", Value: []byte(event)}},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
