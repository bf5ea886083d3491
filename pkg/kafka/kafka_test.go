package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestProducerEncodesValues(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "gzip")
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "rounds", []byte("run-1"), map[string]int{"quarter": 4}))
	require.NoError(t, p.Publish(ctx, "rounds", nil, "raw"))
	require.NoError(t, p.PublishMessage(ctx, "logs", []byte(`[]`)))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "rounds", w.msgs[0].Topic)
	assert.Equal(t, []byte("run-1"), w.msgs[0].Key)
	assert.JSONEq(t, `{"quarter":4}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "logs", w.msgs[2].Topic)
	assert.Nil(t, w.msgs[2].Key)

	w.err = errors.New("leader not available")
	err := p.Publish(ctx, "rounds", nil, "x")
	assert.ErrorContains(t, err, "leader not available")

	_, err = NewProducer(ProducerConfig{})
	assert.ErrorContains(t, err, "brokers")
	_, err = NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Compression: "brotli"})
	assert.ErrorContains(t, err, "brotli")
}

type memReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error { return nil }

func TestConsumerRetriesAndCommits(t *testing.T) {
	r := &memReader{queue: []kafka.Message{
		{Topic: "rounds", Offset: 1, Value: []byte("a")},
		{Topic: "rounds", Offset: 2, Value: []byte("b")},
	}}
	c := NewConsumerWithReader(r, WithConsumerRetry(2, time.Millisecond, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, m Message) error {
			calls++
			seen = append(seen, string(m.Value))
			if string(m.Value) == "b" {
				cancel()
				return nil
			}
			if calls < 2 {
				return errors.New("transient")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"a", "a", "b"}, seen)
	assert.Equal(t, []int64{1}, r.committed)
	require.NoError(t, c.Close())
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
