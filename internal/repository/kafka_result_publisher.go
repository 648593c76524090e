package repository

import (
	"context"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	pkgkafka "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/kafka"
)

// KafkaResultPublisher publishes results keyed by ticker.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

// resultMessage is the compact wire form; consumers fetch details from the result store.
func resultMessage(r *models.AggregateResult) map[string]interface{} {
	return map[string]interface{}{
		"ticker":         r.Ticker,
		"ts":             r.Timestamp.Unix(),
		"as_of":          r.AsOf.Format("2006-01-02"),
		"status":         r.Status,
		"confidence":     r.Confidence,
		"final_score":    r.FinalScore,
		"ml_probability": r.MLProbability,
		"wave_phase":     r.WavePhase,
		"reasons":        r.Reasons,
	}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, r *models.AggregateResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Ticker), resultMessage(r))
}

func (p *KafkaResultPublisher) PublishBatch(ctx context.Context, results []*models.AggregateResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Ticker), Value: resultMessage(r)})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)
