// Package events delivers pipeline telemetry asynchronously. Publishing never
// blocks the answer path: a full buffer drops the event and bumps a counter.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind identifies the event category.
type Kind string

const (
	KindChat     Kind = "chat"
	KindCost     Kind = "cost"
	KindFeedback Kind = "feedback"
)

// Event is one telemetry record.
type Event struct {
	Kind      Kind
	TenantID  string
	RequestID string
	Fields    map[string]any
	At        time.Time
}

// Sink receives events from the publisher workers.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// LogSink writes events to the structured log. The default sink when nothing
// else is wired.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Deliver(ctx context.Context, ev Event) error {
	s.Logger.Info("event",
		zap.String("kind", string(ev.Kind)),
		zap.String("tenant_id", ev.TenantID),
		zap.String("request_id", ev.RequestID),
		zap.Any("fields", ev.Fields))
	return nil
}

// Config holds publisher tuning.
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default publisher tuning.
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// Publisher fans events out to a sink via a buffered channel and a small
// worker pool.
type Publisher struct {
	sink        Sink
	logger      *zap.Logger
	eventChan   chan Event
	workerCount int
	wg          sync.WaitGroup
	dropped     atomic.Int64
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewPublisher creates a publisher. Call Start before publishing.
func NewPublisher(sink Sink, logger *zap.Logger, config Config) *Publisher {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	return &Publisher{
		sink:        sink,
		logger:      logger,
		eventChan:   make(chan Event, config.BufferSize),
		workerCount: config.WorkerCount,
	}
}

// Start launches the worker goroutines.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("event publisher already started")
	}
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.started = true
	p.logger.Info("started event publisher",
		zap.Int("worker_count", p.workerCount),
		zap.Int("buffer_size", cap(p.eventChan)))
	return nil
}

// Stop closes the channel and waits for the workers to drain it.
func (p *Publisher) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("event publisher not running")
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.eventChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("event publisher stopped", zap.Int64("dropped_total", p.dropped.Load()))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("event publisher stop timeout after %v", timeout)
	}
}

// Publish enqueues an event without blocking. Events published before Start
// or after Stop, and events that find the buffer full, are dropped.
func (p *Publisher) Publish(ev Event) {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		p.dropped.Add(1)
		return
	}
	p.mu.Unlock()

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	select {
	case p.eventChan <- ev:
	default:
		p.dropped.Add(1)
		p.logger.Warn("event buffer full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("tenant_id", ev.TenantID))
	}
}

// Dropped reports how many events were discarded since startup.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Pending reports the number of queued events.
func (p *Publisher) Pending() int {
	return len(p.eventChan)
}

func (p *Publisher) worker(id int) {
	defer p.wg.Done()

	for ev := range p.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.sink.Deliver(ctx, ev); err != nil {
			p.logger.Error("failed to deliver event",
				zap.Int("worker_id", id),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
		}
		cancel()
	}
}
