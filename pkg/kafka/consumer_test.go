package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	mu       sync.Mutex
	calls    int
	failFor  int
	panicOn  int
	lastData []byte
	lastCtx  context.Context
}

func (h *stubHandler) Topic() string { return "observations" }

func (h *stubHandler) Handle(ctx context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.lastData = data
	h.lastCtx = ctx
	if h.panicOn == h.calls {
		panic("boom")
	}
	if h.calls <= h.failFor {
		return errors.New("transient")
	}
	return nil
}

type stubCommitter struct {
	committed []int64
}

func (s *stubCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

type stubWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error { return nil }

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return c
}

func testMessage(offset int64) *message {
	return &message{topic: "observations", km: kafka.Message{
		Topic:  "observations",
		Offset: offset,
		Value:  []byte(`{"kind":"price"}`),
	}}
}

func TestProcessRetriesThenCommits(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &stubHandler{failFor: 2}
	commits := &stubCommitter{}

	c.process(h, commits, testMessage(7))

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{7}, commits.committed)
}

func TestProcessExhaustedGoesToDLQ(t *testing.T) {
	c := newTestConsumer(t, 1)
	dlq := &stubWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "observations.dlq"
	h := &stubHandler{failFor: 10}
	commits := &stubCommitter{}

	c.process(h, commits, testMessage(3))

	assert.Equal(t, 2, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "observations.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, []int64{3}, commits.committed)

	var source string
	for _, hd := range dlq.msgs[0].Headers {
		if hd.Key == "source_topic" {
			source = string(hd.Value)
		}
	}
	assert.Equal(t, "observations", source)
}

func TestProcessDLQFailureLeavesOffsetUncommitted(t *testing.T) {
	c := newTestConsumer(t, 0)
	c.dlq = &stubWriter{err: errors.New("broker down")}
	c.cfg.DLQTopic = "observations.dlq"
	commits := &stubCommitter{}

	c.process(&stubHandler{failFor: 1}, commits, testMessage(9))

	assert.Empty(t, commits.committed)
}

func TestProcessRecoversHandlerPanic(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &stubHandler{panicOn: 1}
	commits := &stubCommitter{}

	assert.NotPanics(t, func() { c.process(h, commits, testMessage(1)) })
	assert.Equal(t, 2, h.calls)
	assert.Equal(t, []int64{1}, commits.committed)
}

func TestTraceHookPropagatesHeader(t *testing.T) {
	c := newTestConsumer(t, 0)
	c.WithConsumerHook(NewHookChain(TraceHook()))
	h := &stubHandler{}

	msg := testMessage(1)
	msg.km.Headers = []kafka.Header{{Key: TraceIDHeader, Value: []byte("abc-123")}}
	c.process(h, &stubCommitter{}, msg)

	require.NotNil(t, h.lastCtx)
	assert.Equal(t, "abc-123", TraceID(h.lastCtx))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestHookChainConvertsPanicToError(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	assert.Error(t, err)
}
