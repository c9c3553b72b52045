package producer

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Producer interface defines the methods that a Kafka producer must implement
type Producer interface {
	// Produce 同步送出，block 到所有訊息都寫入
	Produce(ctx context.Context, msgs []kafka.Message) error
	// Publish 將 outbox 紀錄轉成訊息後送出
	Publish(ctx context.Context, records []model.OutboxRecord) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer implements the Producer interface
// writer 不綁定 topic，由每則訊息自帶
type kafkaProducer struct {
	writer messageWriter
	cfg    *Config
	closed atomic.Bool
	logger zerolog.Logger
}

// New creates a new Kafka producer
func New(cfg *Config, logger zerolog.Logger) (Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{}, // 同一訂單的事件落在同一 partition，維持順序
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        false,
		MaxAttempts:  1, // 重試由 Produce 控制

		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Msgf("kafka producer error: "+msg, args...)
		}),

		Compression: kafka.Snappy,
	}

	return newWithWriter(writer, cfg, logger), nil
}

func newWithWriter(writer messageWriter, cfg *Config, logger zerolog.Logger) *kafkaProducer {
	return &kafkaProducer{
		writer: writer,
		cfg:    cfg,
		logger: logger,
	}
}

func (p *kafkaProducer) Produce(ctx context.Context, msgs []kafka.Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}
	topic := msgs[0].Topic

	var err error
	delay := p.cfg.RetryDelay
	for attempt := 0; attempt <= p.cfg.RetryLimit; attempt++ {
		if ctx.Err() != nil {
			return NewKafkaError("Produce", topic, ctx.Err())
		}
		err = p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		if !IsTemporaryError(err) || attempt == p.cfg.RetryLimit {
			break
		}

		p.logger.Warn().Err(err).Int("attempt", attempt+1).Str("topic", topic).Msg("kafka produce retry")
		select {
		case <-ctx.Done():
			return NewKafkaError("Produce", topic, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return NewKafkaError("Produce", topic, err)
}

func (p *kafkaProducer) Publish(ctx context.Context, records []model.OutboxRecord) error {
	return p.Produce(ctx, ToMessages(records))
}

// ToMessages event_id 放在 header 供消費端去重
func ToMessages(records []model.OutboxRecord) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		msgs = append(msgs, kafka.Message{
			Topic: record.Topic,
			Key:   []byte(record.Key),
			Value: record.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(record.EventID)},
			},
			Time: record.CreatedAt,
		})
	}
	return msgs
}

func (p *kafkaProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
