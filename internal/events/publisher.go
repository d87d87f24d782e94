// Package events publishes best-effort pipeline-progress events after every
// legal state transition. Publish failures never affect the transition
// outcome: the Engine commits state first and fires the event afterward,
// fire-and-forget, matching the request-local "never shared mutable state"
// concurrency rule.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Event is one pipeline progress notification.
type Event struct {
	RequestID string    `json:"request_id"`
	SubjectID string    `json:"subject_id"`
	Status    string    `json:"status"`
	Step      int       `json:"step"`
	At        time.Time `json:"at"`
}

// Publisher is the event-bus capability the Engine optionally consumes.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NoopPublisher discards every event. Wired when no event bus is
// configured; absence of the capability is a construction-time decision.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt Event) error { return nil }

// KafkaPublisher publishes progress events to a Kafka topic via an async
// sarama producer: Publish hands the message to the producer's input
// channel without waiting for broker acknowledgement, and delivery errors
// are logged rather than surfaced.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *logrus.Entry
}

// NewKafkaPublisher dials brokers and returns a Publisher writing to
// "<topicPrefix>.progress".
func NewKafkaPublisher(brokers []string, topicPrefix string, log *logrus.Entry) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	p := &KafkaPublisher{producer: producer, topic: topicPrefix + ".progress", log: log}
	go p.drainErrors()
	return p, nil
}

func (p *KafkaPublisher) drainErrors() {
	for err := range p.producer.Errors() {
		p.log.WithError(err.Err).Warn("pipeline progress event publish failed")
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(evt.RequestID),
		Value:     sarama.ByteEncoder(body),
		Timestamp: evt.At,
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
