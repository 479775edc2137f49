package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/shepherdmeng/smrf/internal/domain"
	"github.com/shepherdmeng/smrf/internal/output"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink publishes each emitted grid as one message keyed by variable name.
// It implements output.Sink.
type Sink struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSink creates a Kafka producer for topic.
func NewSink(brokers []string, topic string, logger *slog.Logger) *Sink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Sink{writer: w, logger: logger}
}

// Emit serializes g and writes it synchronously.
func (s *Sink) Emit(ctx context.Context, variable domain.Variable, t time.Time, g domain.Grid) error {
	msg, err := serializeToMessage(ctx, variable, t, g)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s at %s: %w", variable, t.Format(time.RFC3339), err)
	}
	s.logger.Debug("grid published", "variable", variable, "time", t, "bytes", len(msg.Value))
	return nil
}

// Close flushes and closes the producer.
func (s *Sink) Close() error {
	return s.writer.Close()
}

// gridMessage is the wire format of one grid. Data is row-major, north
// row first; NaN cells are null.
type gridMessage struct {
	Variable string      `json:"variable"`
	Time     time.Time   `json:"time"`
	Ny       int         `json:"ny"`
	Nx       int         `json:"nx"`
	Data     []cellValue `json:"data"`
}

type cellValue float64

func (v cellValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// serializeToMessage marshals a grid into a Kafka message. Scalars travel
// as 1x1 grids.
func serializeToMessage(ctx context.Context, variable domain.Variable, t time.Time, g domain.Grid) (kafkago.Message, error) {
	body := gridMessage{
		Variable: string(variable),
		Time:     t.UTC(),
		Ny:       g.Ny,
		Nx:       g.Nx,
		Data:     make([]cellValue, len(g.Data)),
	}
	for k, v := range g.Data {
		body.Data[k] = cellValue(v)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s grid: %w", variable, err)
	}

	headers := []kafkago.Header{
		{Key: "variable", Value: []byte(variable)},
		{Key: "timestep", Value: []byte(t.UTC().Format(time.RFC3339))},
	}
	if id, ok := output.RunID(ctx); ok {
		headers = append(headers, kafkago.Header{Key: "run_id", Value: []byte(id.String())})
	}
	return kafkago.Message{
		Key:     []byte(variable),
		Value:   data,
		Headers: headers,
	}, nil
}
