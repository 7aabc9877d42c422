package transport

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/runner"
)

const (
	headerMessageType = "manufacture-type"
	headerContentType = "content-type"
)

// KafkaConfig holds broker settings shared by the producer and consumer.
type KafkaConfig struct {
	Brokers        []string      `json:"brokers" yaml:"brokers"`
	Topic          string        `json:"topic" yaml:"topic"`
	GroupID        string        `json:"group_id" yaml:"group_id"`
	BatchSize      int           `json:"batch_size" yaml:"batch_size"`
	BatchTimeout   time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
	RequiredAcks   int           `json:"required_acks" yaml:"required_acks"`
	MinBytes       int           `json:"min_bytes" yaml:"min_bytes"`
	MaxBytes       int           `json:"max_bytes" yaml:"max_bytes"`
	MaxWait        time.Duration `json:"max_wait" yaml:"max_wait"`
	CommitInterval time.Duration `json:"commit_interval" yaml:"commit_interval"`
}

// DefaultKafkaConfig returns local development settings.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "manufacture.parts",
		GroupID:      "manufacture-worker",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafka.RequireAll),
		MinBytes:     1,
		MaxBytes:     10e6,
		MaxWait:      time.Second,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	io.Closer
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	io.Closer
}

// KafkaProducer publishes envelopes to one topic. Messages of one
// aggregate share a key and therefore a partition.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

func NewKafkaProducer(cfg KafkaConfig) *KafkaProducer {
	return &KafkaProducer{
		topic: cfg.Topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		},
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg manufacture.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	km := kafka.Message{
		Key:   []byte(partitionKey(msg)),
		Value: data,
		Headers: []kafka.Header{
			{Key: headerMessageType, Value: []byte(msg.Type())},
			{Key: headerContentType, Value: []byte("application/json")},
		},
		Time: time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, "publish to topic "+p.topic)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer feeds a topic into a Dispatcher with at-least-once
// semantics: offsets are committed after the dispatch returned, or right
// away for messages that can never be dispatched. A record whose dispatch
// failed is dispatched again until it goes through; the consumer never
// fetches past it.
type KafkaConsumer struct {
	reader  messageReader
	bus     Dispatcher
	logger  logger.Logger
	topic   string
	backoff runner.RetryStrategy
}

type ConsumerOption func(*KafkaConsumer)

// DefaultRedeliveryBackoff spaces out dispatch attempts of a failed record.
func DefaultRedeliveryBackoff() runner.RetryStrategy {
	return runner.ExponentialBackoffStrategy{
		Base:   200 * time.Millisecond,
		Factor: 2,
		Max:    10 * time.Second,
	}
}

// WithRedeliveryBackoff sets the delay between dispatch attempts of a record.
func WithRedeliveryBackoff(s runner.RetryStrategy) ConsumerOption {
	return func(c *KafkaConsumer) {
		if s != nil {
			c.backoff = s
		}
	}
}

func WithConsumerLogger(l logger.Logger) ConsumerOption {
	return func(c *KafkaConsumer) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewKafkaConsumer(cfg KafkaConfig, bus Dispatcher, opts ...ConsumerOption) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
	})
	return newKafkaConsumer(reader, cfg.Topic, bus, opts...)
}

func newKafkaConsumer(reader messageReader, topic string, bus Dispatcher, opts ...ConsumerOption) *KafkaConsumer {
	c := &KafkaConsumer{
		reader:  reader,
		bus:     bus,
		logger:  logger.Nop{},
		topic:   topic,
		backoff: DefaultRedeliveryBackoff(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Run consumes until ctx is done. It returns nil on cancellation.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	lgr := logger.With(c.logger.WithContext(ctx), map[string]any{"topic": c.topic})
	lgr.Info("consumer started")
	defer lgr.Info("consumer stopped")

	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, io.EOF) {
				return nil
			}
			lgr.Error("fetching message failed: %v", err)
			continue
		}
		if !c.deliver(ctx, lgr, km) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, km); err != nil {
			lgr.Error("committing offset %d failed: %v", km.Offset, err)
		}
	}
}

// deliver dispatches km until it is handled. It reports false only when ctx
// ended first, leaving the offset uncommitted for the next group member.
func (c *KafkaConsumer) deliver(ctx context.Context, lgr logger.Logger, km kafka.Message) bool {
	for attempt := 0; ; attempt++ {
		err := c.handle(ctx, lgr, km)
		if err == nil {
			return true
		}
		delay := c.backoff.SleepDuration(attempt, err)
		lgr.Warn("redelivering offset %d in %s (attempt %d): %v", km.Offset, delay, attempt+1, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// handle dispatches one record. A nil error means the offset can be
// committed, either because the dispatch went through or because the record
// can never be dispatched.
func (c *KafkaConsumer) handle(ctx context.Context, lgr logger.Logger, km kafka.Message) error {
	msg, err := Decode(km.Value)
	if err != nil {
		logger.Critical(lgr, "dropping undecodable message at offset %d: %v", km.Offset, err)
		return nil
	}

	report, err := c.bus.Dispatch(ctx, msg)
	if err != nil {
		if manufacture.HasCode(err, manufacture.ErrCodeValidation) {
			logger.Critical(lgr, "dropping invalid %s at offset %d: %v", msg.Type(), km.Offset, err)
			return nil
		}
		lgr.Error("dispatching %s at offset %d failed: %v", msg.Type(), km.Offset, err)
		return err
	}
	if err := report.Err(); err != nil {
		lgr.Warn("%s at offset %d had failing handlers: %v", msg.Type(), km.Offset, err)
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
