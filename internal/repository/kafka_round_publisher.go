package repository

import (
	"context"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
)

// Producer is the part of pkg/kafka.Producer the publisher uses.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaRoundPublisher writes one JSON RoundCommitted per quarter, keyed by run
// id so a run's rounds stay ordered on one partition.
type KafkaRoundPublisher struct {
	producer Producer
	topic    string
}

var _ drepo.RoundPublisher = (*KafkaRoundPublisher)(nil)

func NewKafkaRoundPublisher(producer Producer, topic string) *KafkaRoundPublisher {
	return &KafkaRoundPublisher{producer: producer, topic: topic}
}

func (p *KafkaRoundPublisher) PublishRound(ctx context.Context, ev *models.RoundCommitted) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.RunID), ev)
}

// Close is a no-op; the producer is shared with the log collector and closed
// by its owner.
func (p *KafkaRoundPublisher) Close() error { return nil }
