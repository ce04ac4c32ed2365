package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// DealEvent is the Kafka payload published for every ranked deal.
type DealEvent struct {
	RunID       string      `json:"run_id"`
	Today       models.Date `json:"today"`
	GeneratedAt time.Time   `json:"generated_at"`
	Deal        models.Deal `json:"deal"`
}

// KafkaPublisher publishes ranked deals, one message per deal keyed by the
// deal key.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, topic, clientID string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

func (k *KafkaPublisher) Name() string { return "kafka" }

// Notify publishes every ranked deal of the run.
func (k *KafkaPublisher) Notify(ctx context.Context, result *models.RunResult, _ string) error {
	for _, d := range result.Deals {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(DealEvent{
			RunID:       result.Summary.RunID,
			Today:       result.Summary.Today,
			GeneratedAt: result.Summary.GeneratedAt,
			Deal:        d,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal deal %s: %w", d.Key, err)
		}

		_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(d.Key),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			return fmt.Errorf("failed to publish deal %s: %w", d.Key, err)
		}
	}
	return nil
}

// Close shuts the producer down.
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
