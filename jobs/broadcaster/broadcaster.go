package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/orderable/matchcore/infra/outbox"
)

// Broadcaster drains the durable event outbox into Kafka. Every event
// is staged in the outbox first and marked acknowledged only after the
// broker accepts it, so delivery is at-least-once across restarts.
type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	log *zap.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// ------------------------------------------------
// DRAIN LOOP
// ------------------------------------------------

func (b *Broadcaster) Start(ctx context.Context) {
	// Entries stranded in SENT by a crash between the state write and
	// the broker ack are invisible to ScanPending; put them back first.
	if n, err := b.outbox.RequeueSent(); err != nil {
		b.log.Error("outbox requeue failed", zap.Error(err))
	} else if n > 0 {
		b.log.Info("requeued in-flight events", zap.Int("count", n))
	}

	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

// drainOnce walks pending records in sequence order. SENT is written
// before the publish so a crash mid-send is visible on the next scan;
// a failed publish is marked FAILED and retried on a later tick.
func (b *Broadcaster) drainOnce() {
	err := b.outbox.ScanPending(func(rec outbox.Record) error {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(keyFor(rec.Seq)),
			Value: sarama.ByteEncoder(rec.Payload),
		}

		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("event publish failed",
				zap.Uint64("seq", rec.Seq), zap.Error(err))
			return b.outbox.MarkFailed(rec.Seq)
		}

		return b.outbox.MarkAcked(rec.Seq)
	})
	if err != nil {
		b.log.Error("outbox scan failed", zap.Error(err))
	}
}

func keyFor(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
