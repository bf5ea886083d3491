package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// ProducerConfig maps onto kafka.Writer. Zero values take the defaults
// applied by NewProducer.
type ProducerConfig struct {
	Brokers []string
	// RequiredAcks is -1 for all replicas, 1 for the leader only.
	RequiredAcks int
	Compression  string // gzip, snappy, lz4 or zstd
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int64
	Linger       time.Duration
	Async        bool
	// HashByKey keeps equal keys on one partition so a run stays ordered.
	HashByKey bool
}

func (c *ProducerConfig) applyDefaults() {
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.Compression == "" {
		c.Compression = "gzip"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 1 << 20
	}
	if c.Linger <= 0 {
		c.Linger = 50 * time.Millisecond
	}
}

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer JSON encodes values onto a kafka.Writer and records publish
// metrics per topic.
type Producer struct {
	writer Writer
	comp   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	cfg.applyDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            codec,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.Linger,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, cfg.Compression), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w Writer, compression string) *Producer {
	metricsOnce.Do(registerProducerMetrics)
	return &Producer{writer: w, comp: compression}
}

// Publish sends one message. []byte and string values go out as is.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	payload, err := encode(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: payload, Time: start})
	publishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		publishedMessages.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	publishedMessages.WithLabelValues(topic, "ok").Inc()
	publishedBytes.WithLabelValues(topic, p.comp).Add(float64(len(payload)))
	return nil
}

// PublishMessage sends an unkeyed message, which is what the log collector
// expects of its publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// Close flushes pending async batches.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

func compression(name string) (kafka.Compression, error) {
	switch name {
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unknown kafka compression %q", name)
}

var (
	metricsOnce       sync.Once
	publishedMessages *prometheus.CounterVec
	publishedBytes    *prometheus.CounterVec
	publishLatency    *prometheus.HistogramVec
)

func registerProducerMetrics() {
	publishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentomics_kafka_producer_messages_total",
		Help: "Messages published to Kafka by result.",
	}, []string{"topic", "result"})
	publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentomics_kafka_producer_bytes_total",
		Help: "Payload bytes published before compression.",
	}, []string{"topic", "compression"})
	publishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentomics_kafka_producer_publish_seconds",
		Help:    "Time spent in WriteMessages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
}
