package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Типы событий жизненного цикла плана.
const (
	TypePlanGenerated    = "plan.generated"
	TypePlanFailed       = "plan.failed"
	TypePlanApproved     = "plan.approved"
	TypePlanRejected     = "plan.rejected"
	TypePlanDetailed     = "plan.detailed"
	TypeShoppingListSent = "shopping_list.exported"
)

type Event struct {
	Type       string                 `json:"type"`
	UserID     uuid.UUID              `json:"user_id"`
	PlanID     *uuid.UUID             `json:"plan_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// KafkaPublisher пишет события в один топик, ключ сообщения - id пользователя.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher создает синхронного продюсера с подтверждением от всех реплик.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true
	if cfg.Timeout > 0 {
		saramaConfig.Net.DialTimeout = cfg.Timeout
		saramaConfig.Net.ReadTimeout = cfg.Timeout
		saramaConfig.Net.WriteTimeout = cfg.Timeout
		saramaConfig.Producer.Timeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisherWithProducer оборачивает готового продюсера.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish сериализует событие и отправляет его синхронно.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("send event %s: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		slog.String("type", event.Type),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// NopPublisher используется, когда Kafka не настроена.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
