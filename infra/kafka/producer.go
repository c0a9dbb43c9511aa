// Package kafka holds the live trade feed producer. Delivery here is
// fire-and-forget market data; the outbox path is the authoritative
// event stream.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        true, // never block the publishing caller
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send enqueues a message; with Async set, errors surface through the
// writer's completion callback and are deliberately dropped here.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
