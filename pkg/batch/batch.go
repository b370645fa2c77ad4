package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonas-merkle/slacksink/pkg/core"
)

type Config struct {
	BatchSize     int
	FlushPeriod   time.Duration
	QueueCapacity int
}

// Scheduler accumulates events and hands them to a flush callback in
// batches. A flush fires when the batch size limit is reached or when
// the flush period elapses, whichever comes first. The pending queue
// is bounded by QueueCapacity; when a producer outruns delivery, the
// oldest unflushed events are dropped first. Batches keep enqueue
// order and at most one batch is in the callback at a time.
type Scheduler struct {
	config Config
	flush  core.FlushFunc
	log    zerolog.Logger

	ctx     context.Context
	stopCtx context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending []core.Event

	batchChan chan []core.Event
	deliverMu sync.Mutex

	stopOnce sync.Once
	metrics  *Metrics
}

func NewScheduler(ctx context.Context, config Config, flush core.FlushFunc, log zerolog.Logger) *Scheduler {
	nCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		config:    config,
		flush:     flush,
		log:       log,
		ctx:       nCtx,
		stopCtx:   cancel,
		batchChan: make(chan []core.Event, 16),
		metrics:   &Metrics{QueueCapacity: config.QueueCapacity},
	}
}

// Enqueue adds one event to the pending queue. If the queue is at
// capacity the oldest unflushed event is dropped to make room: the
// capacity bounds memory, it is not a delivery guarantee.
func (s *Scheduler) Enqueue(event core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.QueueCapacity > 0 && len(s.pending) >= s.config.QueueCapacity {
		s.pending = append(s.pending[:0], s.pending[1:]...)
		s.metrics.IncDropped()
		s.log.Warn().Int("capacity", s.config.QueueCapacity).Msg("queue full, dropped oldest event")
	}

	s.pending = append(s.pending, event)
	s.metrics.IncEnqueued()

	if len(s.pending) >= s.config.BatchSize {
		s.cutLocked()
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.flushTimer()
	go s.processBatches()
}

// Stop shuts the timer and consumer down, then makes one final flush
// attempt for everything still queued.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopCtx()
		s.wg.Wait()
		s.drain(context.Background())
	})
}

// Flush synchronously delivers everything pending right now. It is
// safe to call while the scheduler is running.
func (s *Scheduler) Flush(ctx context.Context) {
	s.drain(ctx)
}

// Metrics returns a snapshot of the scheduler counters.
func (s *Scheduler) Metrics() Metrics {
	return s.metrics.Snapshot()
}

func (s *Scheduler) flushTimer() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if len(s.pending) > 0 {
				s.cutLocked()
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processBatches() {
	defer s.wg.Done()

	for {
		select {
		case batch := <-s.batchChan:
			s.deliver(context.Background(), batch)
		case <-s.ctx.Done():
			return
		}
	}
}

// cutLocked moves up to one batch worth of pending events onto the
// hand-off channel. Callers hold s.mu. If the consumer is backed up
// the events simply stay pending; the timer retries and the capacity
// bound takes over if the producer keeps going.
func (s *Scheduler) cutLocked() {
	n := len(s.pending)
	if s.config.BatchSize > 0 && n > s.config.BatchSize {
		n = s.config.BatchSize
	}
	if n == 0 {
		return
	}

	batch := make([]core.Event, n)
	copy(batch, s.pending[:n])

	select {
	case s.batchChan <- batch:
		s.pending = append(s.pending[:0], s.pending[n:]...)
	default:
		s.log.Debug().Int("pending", len(s.pending)).Msg("consumer busy, batch stays queued")
	}
}

// drain delivers queued batches and all remaining pending events,
// in order: first whatever was already cut, then the rest.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		select {
		case batch := <-s.batchChan:
			s.deliver(ctx, batch)
		default:
			s.mu.Lock()
			pending := s.pending
			s.pending = nil
			s.mu.Unlock()

			for len(pending) > 0 {
				n := len(pending)
				if s.config.BatchSize > 0 && n > s.config.BatchSize {
					n = s.config.BatchSize
				}
				s.deliver(ctx, pending[:n])
				pending = pending[n:]
			}
			return
		}
	}
}

func (s *Scheduler) deliver(ctx context.Context, batch []core.Event) {
	if len(batch) == 0 {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.flush(ctx, batch)
	s.metrics.AddFlushed(len(batch))
}
