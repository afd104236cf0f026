package mail

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"tenantdesk/backend/internal/platform/logger"
)

// sendTimeout bounds one background delivery or one Kafka write.
const sendTimeout = 10 * time.Second

// ShutdownDrainDuration is how long the server waits for in-flight background deliveries.
const ShutdownDrainDuration = sendTimeout

// AsyncQueue delivers each message in its own goroutine. Request cancellation does not abort
// delivery; Close waits for in-flight sends.
type AsyncQueue struct {
	sender Sender
	wg     sync.WaitGroup
}

// NewAsyncQueue returns an in-process queue over sender.
func NewAsyncQueue(sender Sender) *AsyncQueue {
	return &AsyncQueue{sender: sender}
}

func (q *AsyncQueue) Enqueue(_ context.Context, msg Message) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := q.sender.Send(ctx, msg); err != nil {
			logger.L().Warnw("mail: async send failed", "kind", msg.Kind, "error", err)
		}
	}()
	return nil
}

// Close waits up to ShutdownDrainDuration for pending sends.
func (q *AsyncQueue) Close() error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(ShutdownDrainDuration):
		logger.L().Warnw("mail: shutdown with sends still in flight")
	}
	return nil
}

// MessageWriter is the subset of kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes messages to a topic for the worker.
type KafkaQueue struct {
	writer MessageWriter
}

// NewKafkaQueue creates a producer writing to topic. It returns nil when brokers or topic are empty.
func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaQueue{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Enqueue serializes msg and writes it keyed by kind. Slow brokers are bounded by sendTimeout.
func (q *KafkaQueue) Enqueue(ctx context.Context, msg Message) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return q.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(msg.Kind), Value: payload})
}

// Close closes the Kafka writer.
func (q *KafkaQueue) Close() error {
	if q == nil || q.writer == nil {
		return nil
	}
	return q.writer.Close()
}

// MessageReader is the subset of kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewKafkaReader returns a consumer-group reader for the mail topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consume reads messages until ctx is cancelled and delivers each through sender.
// Undecodable payloads and delivery failures are logged and skipped.
func Consume(ctx context.Context, reader MessageReader, sender Sender) error {
	for {
		km, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.L().Warnw("mail: kafka read error", "error", err)
			continue
		}
		var msg Message
		if err := sonic.Unmarshal(km.Value, &msg); err != nil {
			logger.L().Warnw("mail: dropping undecodable message", "offset", km.Offset, "error", err)
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := sender.Send(sendCtx, msg); err != nil {
			logger.L().Errorw("mail: delivery failed", "kind", msg.Kind, "offset", km.Offset, "error", err)
		}
		cancel()
	}
}
