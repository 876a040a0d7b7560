package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// headerEventType заголовок сообщения с типом события
const headerEventType = "event_type"

// Producer публикует события реестра отпечатков. Ключ сообщения — хэш содержимого,
// поэтому события одного изображения попадают в одну партицию.
type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s (messages: %d)", err.Error(), len(messages))
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// PublishFingerprintEvent сериализует событие и отправляет его в топик.
func (p *Producer) PublishFingerprintEvent(ctx context.Context, event *usecase.FingerprintEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// NewMessage собирает сообщение Kafka: protobuf Struct в значении, тип события в заголовке.
func NewMessage(event *usecase.FingerprintEvent) (kafka.Message, error) {
	value, err := GetPayloadBytes(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.ContentHash.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}, nil
}

// GetPayloadBytes кодирует событие как google.protobuf.Struct.
func GetPayloadBytes(event *usecase.FingerprintEvent) ([]byte, error) {
	payload, err := structpb.NewStruct(map[string]any{
		"event_id":      uuid.NewString(),
		"event_type":    event.Type,
		"product_id":    event.ProductID,
		"content_hash":  event.ContentHash.String(),
		"object_key":    event.ObjectKey,
		"source":        string(event.Source),
		"model_version": event.ModelVersion,
		"occurred_at":   event.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build event payload: %w", err)
	}

	return proto.Marshal(payload)
}

func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
