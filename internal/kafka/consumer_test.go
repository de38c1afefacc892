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
	"go.uber.org/zap"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) state() ([]int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...), r.closed
}

type handlerFunc func(ctx context.Context, body []byte) error

func (f handlerFunc) Handle(ctx context.Context, body []byte) error { return f(ctx, body) }

func runConsumer(t *testing.T, r *fakeReader, h Handler, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(r, h, ConsumerConfig{MaxAttempts: 3, RetryBackoff: time.Millisecond, ReadBackoff: time.Millisecond}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, until, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_CommitsHandledMessages(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte("a")},
		kafka.Message{Offset: 2, Value: []byte("b")},
	)

	var mu sync.Mutex
	var seen []string
	h := handlerFunc(func(_ context.Context, body []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(body))
		return nil
	})

	runConsumer(t, r, h, func() bool {
		committed, _ := r.state()
		return len(committed) == 2
	})

	committed, closed := r.state()
	assert.Equal(t, []int64{1, 2}, committed)
	assert.True(t, closed)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestConsumer_RetriesThenMovesOn(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 7, Value: []byte("x")})

	var mu sync.Mutex
	attempts := 0
	h := handlerFunc(func(context.Context, []byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("store unavailable")
	})

	runConsumer(t, r, h, func() bool {
		committed, _ := r.state()
		return len(committed) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestConsumer_RecoversAfterTransientFailure(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 3, Value: []byte("x")})

	var mu sync.Mutex
	attempts := 0
	h := handlerFunc(func(context.Context, []byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("deadlock detected")
		}
		return nil
	})

	runConsumer(t, r, h, func() bool {
		committed, _ := r.state()
		return len(committed) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestConsoleProducer(t *testing.T) {
	p := NewConsoleProducer(zap.NewNop())
	assert.NoError(t, p.SendMessage(context.Background(), "topic", []byte("k"), []byte("v")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SendMessage(ctx, "topic", nil, nil), context.Canceled)
	assert.NoError(t, p.Close())
}
