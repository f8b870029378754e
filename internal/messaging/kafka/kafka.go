package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"tienda-orders/internal/messaging"
)

const (
	writeTimeout = 5 * time.Second
	maxAttempts  = 3
)

type Publisher struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafkaGo.Writer
}

// NewPublisher returns a Publisher that keeps one writer per topic.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{brokers: brokers, writers: make(map[string]*kafkaGo.Writer)}
}

var _ messaging.Publisher = (*Publisher)(nil)

func (k *Publisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return k.writer(topic).WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (k *Publisher) writer(topic string) *kafkaGo.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()
	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(k.brokers...),
		Topic:        topic,
		Balancer:     &kafkaGo.Hash{},
		RequiredAcks: kafkaGo.RequireOne,
		WriteTimeout: writeTimeout,
		MaxAttempts:  maxAttempts,
	}
	k.writers[topic] = w
	return w
}

// Close flushes and closes every writer.
func (k *Publisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var firstErr error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close writer %s: %w", topic, err)
		}
	}
	k.writers = make(map[string]*kafkaGo.Writer)
	return firstErr
}
