package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveleads/lead-agent-platform/internal/messaging"
)

type collectingProcessor struct {
	mu       sync.Mutex
	received []messaging.Inbound
	done     chan struct{}
	want     int
}

func newCollectingProcessor(want int) *collectingProcessor {
	return &collectingProcessor{done: make(chan struct{}), want: want}
}

func (p *collectingProcessor) HandleInbound(_ context.Context, msg messaging.Inbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, msg)
	if len(p.received) == p.want {
		close(p.done)
	}
	return nil
}

func TestDispatcherDeliversInbound(t *testing.T) {
	processor := newCollectingProcessor(2)
	d := NewDispatcher(processor, NewMemoryQueue(0), nil, WithWorkers(2), WithReceiveWaitSeconds(1))
	defer func() { _ = d.Shutdown(context.Background()) }()

	msgs := []messaging.Inbound{
		{ContactKey: "5511999990000", DisplayName: "Maria", Text: "Olá", MessageID: "m1", Timestamp: time.Now().UTC()},
		{ContactKey: "5511888880000", Text: "hi", MessageID: "m2", Timestamp: time.Now().UTC()},
	}
	for _, m := range msgs {
		require.NoError(t, d.Enqueue(context.Background(), m))
	}

	select {
	case <-processor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages were not processed in time")
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	require.Len(t, processor.received, 2)

	byID := map[string]messaging.Inbound{}
	for _, m := range processor.received {
		byID[m.MessageID] = m
	}
	assert.Equal(t, "Olá", byID["m1"].Text)
	assert.Equal(t, "Maria", byID["m1"].DisplayName)
	assert.Equal(t, "5511888880000", byID["m2"].ContactKey)
}

func TestDispatcherEnqueueAfterShutdown(t *testing.T) {
	d := NewDispatcher(newCollectingProcessor(1), NewMemoryQueue(0), nil, WithWorkers(1))
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Enqueue(context.Background(), messaging.Inbound{ContactKey: "x", Text: "hi"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestEncodeDecodeInboundRoundTrip(t *testing.T) {
	in := messaging.Inbound{
		ContactKey:  "5511999990000",
		DisplayName: "Maria",
		Text:        "quero agendar",
		MessageID:   "wamid.99",
		Timestamp:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}

	body, err := encodeInbound(in)
	require.NoError(t, err)

	out, err := decodeInbound(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeInboundRejectsGarbage(t *testing.T) {
	_, err := decodeInbound("{not json")
	assert.Error(t, err)
}
