package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// HandlerFunc processes one message. A non-nil error is retried with backoff.
type HandlerFunc func(ctx context.Context, msg Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic and hands each message to a handler, committing
// offsets after the handler succeeds or its retries run out.
type Consumer struct {
	cfg    *ConsumerConfig
	reader Reader
	once   sync.Once
}

// NewConsumer creates a group consumer for one topic.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}

	start := kafka.FirstOffset
	if cfg.FromLatest {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: start,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
	})
	return NewConsumerWithReader(reader, opts...), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r Reader, opts ...ConsumerOption) *Consumer {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	initConsumerMetricsOnce()
	return &Consumer{cfg: cfg, reader: r}
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   10e6,
	}
}

// Run consumes until ctx is cancelled, returning nil in that case.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		msg := Message{
			Topic:     km.Topic,
			Partition: km.Partition,
			Offset:    km.Offset,
			Key:       km.Key,
			Value:     km.Value,
			Time:      km.Time,
		}
		start := time.Now()
		herr := c.handleWithRetry(ctx, handle, msg)
		consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return nil
		}
		result := "ok"
		if herr != nil {
			result = "error"
		}
		consumerMsgsTotal.WithLabelValues(msg.Topic, result).Inc()

		// commit on failure too so one bad record cannot stall the topic
		if err := c.reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, handle HandlerFunc, msg Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = handle(ctx, msg); err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	var err error
	c.once.Do(func() { err = c.reader.Close() })
	return err
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerMsgsTotal     *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "agentomics_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "agentomics_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
