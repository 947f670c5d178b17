package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
	err    error
}

func (s *collectSink) Deliver(ctx context.Context, ev Event) error {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectSink) collected() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestPublisherDeliversAndDrains(t *testing.T) {
	sink := &collectSink{}
	pub := NewPublisher(sink, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 2})
	require.NoError(t, pub.Start())

	for i := 0; i < 10; i++ {
		pub.Publish(Event{Kind: KindChat, TenantID: "acme"})
	}
	require.NoError(t, pub.Stop(time.Second))

	assert.Len(t, sink.collected(), 10)
	assert.Zero(t, pub.Dropped())
}

func TestPublisherSetsTimestamp(t *testing.T) {
	sink := &collectSink{}
	pub := NewPublisher(sink, zap.NewNop(), Config{BufferSize: 4, WorkerCount: 1})
	require.NoError(t, pub.Start())

	pub.Publish(Event{Kind: KindCost, TenantID: "acme"})
	require.NoError(t, pub.Stop(time.Second))

	events := sink.collected()
	require.Len(t, events, 1)
	assert.False(t, events[0].At.IsZero())
}

func TestPublisherDropsWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	sink := &collectSink{block: block}
	pub := NewPublisher(sink, zap.NewNop(), Config{BufferSize: 2, WorkerCount: 1})
	require.NoError(t, pub.Start())

	// One event is held by the worker, two fill the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		pub.Publish(Event{Kind: KindChat})
	}
	assert.Greater(t, pub.Dropped(), int64(0))

	close(block)
	require.NoError(t, pub.Stop(time.Second))
}

func TestPublisherBeforeStartDrops(t *testing.T) {
	pub := NewPublisher(&collectSink{}, zap.NewNop(), Config{})

	pub.Publish(Event{Kind: KindChat})
	assert.Equal(t, int64(1), pub.Dropped())
}

func TestPublisherSinkFailureDoesNotStopWorkers(t *testing.T) {
	sink := &collectSink{err: errors.New("sink down")}
	pub := NewPublisher(sink, zap.NewNop(), Config{BufferSize: 4, WorkerCount: 1})
	require.NoError(t, pub.Start())

	pub.Publish(Event{Kind: KindFeedback})
	pub.Publish(Event{Kind: KindFeedback})
	assert.NoError(t, pub.Stop(time.Second), "workers drain despite sink errors")
}

func TestPublisherDoubleStartFails(t *testing.T) {
	pub := NewPublisher(&collectSink{}, zap.NewNop(), Config{})
	require.NoError(t, pub.Start())
	assert.Error(t, pub.Start())
	require.NoError(t, pub.Stop(time.Second))
	assert.Error(t, pub.Stop(time.Second))
}
