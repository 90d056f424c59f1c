package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/config"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

// breakerFailures consecutive failed writes open the circuit.
const breakerFailures = 5

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces messages to a Kafka topic behind a circuit breaker, so an
// unreachable cluster fails batches fast instead of stalling every write.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchBytes:   16 << 20,
	}
	return newWriter(w, cfg.KafkaSinkTopic, logger)
}

func newWriter(w messageWriter, name string, logger *slog.Logger) *Writer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("kafka writer circuit changed", "topic", name, "from", from.String(), "to", to.String())
		},
	})
	return &Writer{writer: w, breaker: cb, logger: logger}
}

// LoadBatch serializes and publishes multiple anomaly results to the sink
// topic in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.AnomalyResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeToMessage(results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("write %d results: %w", len(msgs), err)
	}
	w.logger.Debug("batch loaded", "size", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnomalyResult into a Kafka message keyed by
// request ID, so results of one request land on one partition.
func serializeToMessage(result domain.AnomalyResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly result %s: %w", result.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(result.RequestID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "result_id", Value: []byte(result.ID)},
			{Key: "region", Value: []byte(result.Region.Name)},
			{Key: "kind", Value: []byte(result.Kind)},
			{Key: "resolution", Value: []byte(result.Resolution)},
			{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
