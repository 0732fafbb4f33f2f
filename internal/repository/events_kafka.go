package repository

import (
	"context"

	"RiskApprove/internal/domain/repository"
	pkgkafka "RiskApprove/pkg/kafka"
)

// KafkaEvents publishes domain events as JSON through a shared producer.
type KafkaEvents struct {
	producer *pkgkafka.Producer
}

var _ repository.EventPublisher = (*KafkaEvents)(nil)

func NewKafkaEvents(producer *pkgkafka.Producer) *KafkaEvents {
	return &KafkaEvents{producer: producer}
}

func (k *KafkaEvents) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	return k.producer.Publish(ctx, topic, []byte(key), payload)
}

func (k *KafkaEvents) Close() error {
	return k.producer.Close()
}
