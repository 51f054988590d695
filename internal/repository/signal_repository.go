package repository

import (
	"context"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	pkgkafka "github.com/Altav1sta/stocks-checker/pkg/kafka"
)

// KafkaSignalPublisher implements Notifier by publishing level signals to a
// Kafka topic, keyed by ticker so per-ticker ordering survives partitioning.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	metrics  drepo.Metrics
}

// NewKafkaSignalPublisher creates a Kafka-backed notifier.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string, metrics drepo.Metrics) drepo.Notifier {
	return &KafkaSignalPublisher{producer: producer, topic: topic, metrics: metrics}
}

func (p *KafkaSignalPublisher) Notify(ctx context.Context, sig *models.LevelSignal) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(sig.Ticker), sig); err != nil {
		return err
	}
	p.metrics.RecordSignalSent("kafka", sig.Ticker)
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
