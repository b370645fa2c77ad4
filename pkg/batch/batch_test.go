package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/jonas-merkle/slacksink/pkg/core"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]core.Event
}

func (r *batchRecorder) flush(_ context.Context, events []core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make([]core.Event, len(events))
	copy(batch, events)
	r.batches = append(r.batches, batch)
}

func (r *batchRecorder) Batches() [][]core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

func (r *batchRecorder) TotalEvents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, b := range r.batches {
		total += len(b)
	}
	return total
}

func newTestScheduler(config Config, rec *batchRecorder) *Scheduler {
	return NewScheduler(context.TODO(), config, rec.flush, zerolog.Nop())
}

func TestScheduler_SizeTrigger(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     2,
		FlushPeriod:   time.Hour,
		QueueCapacity: 100,
	}, rec)

	scheduler.Start()
	defer scheduler.Stop()

	for i := 0; i < 4; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}

	time.Sleep(100 * time.Millisecond)

	batches := rec.Batches()
	assert.Equal(t, 2, len(batches))
	for _, batch := range batches {
		assert.Equal(t, 2, len(batch))
	}
}

func TestScheduler_PeriodTrigger(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     100,
		FlushPeriod:   50 * time.Millisecond,
		QueueCapacity: 100,
	}, rec)

	scheduler.Start()
	defer scheduler.Stop()

	scheduler.Enqueue(core.Event{Message: "period test"})

	time.Sleep(150 * time.Millisecond)

	assert.Greater(t, len(rec.Batches()), 0)
	assert.Equal(t, 1, rec.TotalEvents())
}

func TestScheduler_ImmediateFlushesWithBatchSizeOne(t *testing.T) {
	// Batch size 1 and a long period: every event must flush on its
	// own, without waiting for the timer.
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     1,
		FlushPeriod:   5 * time.Second,
		QueueCapacity: 100,
	}, rec)

	scheduler.Start()
	defer scheduler.Stop()

	for i := 0; i < 3; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}

	time.Sleep(100 * time.Millisecond)

	batches := rec.Batches()
	assert.Equal(t, 3, len(batches))
	for _, batch := range batches {
		assert.Equal(t, 1, len(batch))
	}
}

func TestScheduler_PreservesEnqueueOrder(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     100,
		FlushPeriod:   time.Hour,
		QueueCapacity: 100,
	}, rec)

	for i := 0; i < 10; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}

	scheduler.Flush(context.TODO())

	batches := rec.Batches()
	assert.Equal(t, 1, len(batches))

	for i, event := range batches[0] {
		assert.Equal(t, fmt.Sprintf("event %d", i), event.Message)
	}
}

func TestScheduler_DropsOldestOnOverflow(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     100,
		FlushPeriod:   time.Hour,
		QueueCapacity: 3,
	}, rec)

	for i := 0; i < 5; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}

	scheduler.Flush(context.TODO())

	batches := rec.Batches()
	assert.Equal(t, 1, len(batches))
	assert.Equal(t, 3, len(batches[0]))
	assert.Equal(t, "event 2", batches[0][0].Message)
	assert.Equal(t, "event 4", batches[0][2].Message)

	metrics := scheduler.Metrics()
	assert.Equal(t, 5, metrics.Enqueued)
	assert.Equal(t, 2, metrics.Dropped)
}

func TestScheduler_StopFlushesRemaining(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     100,
		FlushPeriod:   time.Hour,
		QueueCapacity: 100,
	}, rec)

	scheduler.Start()

	for i := 0; i < 5; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}

	scheduler.Stop()

	assert.Equal(t, 5, rec.TotalEvents())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     10,
		FlushPeriod:   time.Hour,
		QueueCapacity: 100,
	}, rec)

	scheduler.Start()
	scheduler.Enqueue(core.Event{Message: "once"})

	scheduler.Stop()
	scheduler.Stop()

	assert.Equal(t, 1, rec.TotalEvents())
}

func TestScheduler_MetricsSnapshot(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     2,
		FlushPeriod:   time.Hour,
		QueueCapacity: 10,
	}, rec)

	for i := 0; i < 4; i++ {
		scheduler.Enqueue(core.Event{Message: fmt.Sprintf("event %d", i)})
	}
	scheduler.Flush(context.TODO())

	metrics := scheduler.Metrics()
	assert.Equal(t, 4, metrics.Enqueued)
	assert.Equal(t, 4, metrics.EventsFlushed)
	assert.Equal(t, 10, metrics.QueueCapacity)
	assert.GreaterOrEqual(t, metrics.BatchesFlushed, 2)
}

func TestScheduler_ConcurrentEnqueue(t *testing.T) {
	rec := &batchRecorder{}
	scheduler := newTestScheduler(Config{
		BatchSize:     5,
		FlushPeriod:   50 * time.Millisecond,
		QueueCapacity: 1000,
	}, rec)

	scheduler.Start()

	var wg sync.WaitGroup
	wg.Add(5)
	for w := 0; w < 5; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				scheduler.Enqueue(core.Event{Message: fmt.Sprintf("w%d-%d", id, i)})
			}
		}(w)
	}
	wg.Wait()

	scheduler.Stop()

	assert.Equal(t, 250, rec.TotalEvents())
}
