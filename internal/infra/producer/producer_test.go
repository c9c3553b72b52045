package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	errs    []error
	calls   int
	written []kafka.Message
	closed  int
}

func (w *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		if err != nil {
			return err
		}
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed++
	return nil
}

func testConfig() *Config {
	cfg := DefaultConfig("localhost:9092")
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestProduceRetriesTemporaryErrors(t *testing.T) {
	writer := &stubWriter{errs: []error{kafka.LeaderNotAvailable, kafka.RequestTimedOut}}
	p := newWithWriter(writer, testConfig(), zerolog.Nop())

	err := p.Produce(context.Background(), []kafka.Message{{Topic: "orders", Value: []byte("x")}})
	require.NoError(t, err)
	require.Equal(t, 3, writer.calls)
	require.Len(t, writer.written, 1)
}

func TestProduceStopsOnFatalError(t *testing.T) {
	writer := &stubWriter{errs: []error{kafka.TopicAuthorizationFailed}}
	p := newWithWriter(writer, testConfig(), zerolog.Nop())

	err := p.Produce(context.Background(), []kafka.Message{{Topic: "orders"}})
	var kafkaErr *KafkaError
	require.ErrorAs(t, err, &kafkaErr)
	require.Equal(t, "orders", kafkaErr.Topic)
	require.ErrorIs(t, err, kafka.TopicAuthorizationFailed)
	require.Equal(t, 1, writer.calls)
}

func TestProduceGivesUpAfterRetryLimit(t *testing.T) {
	writer := &stubWriter{errs: []error{
		kafka.LeaderNotAvailable, kafka.LeaderNotAvailable, kafka.LeaderNotAvailable, kafka.LeaderNotAvailable,
	}}
	p := newWithWriter(writer, testConfig(), zerolog.Nop())

	err := p.Produce(context.Background(), []kafka.Message{{Topic: "orders"}})
	require.ErrorIs(t, err, kafka.LeaderNotAvailable)
	require.Equal(t, 4, writer.calls)
}

func TestProduceAfterClose(t *testing.T) {
	writer := &stubWriter{}
	p := newWithWriter(writer, testConfig(), zerolog.Nop())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, writer.closed)

	err := p.Produce(context.Background(), []kafka.Message{{Topic: "orders"}})
	require.ErrorIs(t, err, ErrProducerClosed)
}

func TestPublishConvertsOutboxRecords(t *testing.T) {
	writer := &stubWriter{}
	p := newWithWriter(writer, testConfig(), zerolog.Nop())

	err := p.Publish(context.Background(), []model.OutboxRecord{
		{ID: 1, EventID: "e-1", Topic: "orders", Key: "o-1", Payload: []byte(`{"a":1}`)},
	})
	require.NoError(t, err)
	require.Len(t, writer.written, 1)
	msg := writer.written[0]
	require.Equal(t, "orders", msg.Topic)
	require.Equal(t, []byte("o-1"), msg.Key)
	require.Equal(t, "event_id", msg.Headers[0].Key)
	require.Equal(t, []byte("e-1"), msg.Headers[0].Value)
}

func TestIsTemporaryError(t *testing.T) {
	require.False(t, IsTemporaryError(nil))
	require.True(t, IsTemporaryError(kafka.NotLeaderForPartition))
	require.True(t, IsTemporaryError(errors.New("read tcp: i/o timeout")))
	require.False(t, IsTemporaryError(context.Canceled))
	require.False(t, IsTemporaryError(kafka.TopicAuthorizationFailed))
	require.False(t, IsTemporaryError(errors.New("boom")))
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, DefaultConfig().Validate())
	require.NoError(t, DefaultConfig("localhost:9092").Validate())
}
