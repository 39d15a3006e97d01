package outbox

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/Leganyst/reservation-core/internal/model"
)

// Publisher доставляет пачку событий во внешний брокер.
// Ошибка означает, что пачка целиком будет отправлена повторно.
type Publisher interface {
	Publish(ctx context.Context, events []model.Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher пишет события в топик <prefix><event_type>, ключ: сотрудник,
// чтобы события одного расписания шли в одну партицию.
type KafkaPublisher struct {
	writer      messageWriter
	topicPrefix string
}

func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: topicPrefix,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, p.message(ctx, e))
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) message(ctx context.Context, e model.Event) kafka.Message {
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(e.ID.String())},
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "reservation_id", Value: []byte(e.ReservationID.String())},
	}
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return kafka.Message{
		Topic:   p.topicPrefix + string(e.EventType),
		Key:     []byte(e.StaffID.String()),
		Value:   e.Payload,
		Headers: carrier.headers,
		Time:    e.CreatedAt,
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher используется без брокеров: события только пишутся в лог.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, events []model.Event) error {
	for _, e := range events {
		p.log.Info("outbox event",
			zap.String("event_id", e.ID.String()),
			zap.String("event_type", string(e.EventType)),
			zap.String("reservation_id", e.ReservationID.String()),
			zap.ByteString("payload", e.Payload),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
