package repository

import (
	"context"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	pkgkafka "stockcast/pkg/kafka"
	"stockcast/pkg/util"
)

// KafkaBarPublisher ships daily bars to Kafka, keyed by ticker so a
// ticker's days stay in one partition.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

func barPayload(b *models.PriceBar) map[string]interface{} {
	return map[string]interface{}{
		"ticker": b.Ticker,
		"date":   util.FormatDate(b.Date),
		"o":      b.Open,
		"h":      b.High,
		"l":      b.Low,
		"c":      b.Close,
		"v":      b.Volume,
		"vw":     b.VWAP,
	}
}

func (p *KafkaBarPublisher) Publish(ctx context.Context, b *models.PriceBar) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Ticker), barPayload(b))
}

func (p *KafkaBarPublisher) PublishBatch(ctx context.Context, bars []*models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(b.Ticker),
			Value: barPayload(b),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaBarPublisher)(nil)
