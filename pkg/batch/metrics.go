package batch

import (
	"sync"
)

type Metrics struct {
	Enqueued       int
	Dropped        int
	BatchesFlushed int
	EventsFlushed  int
	QueueCapacity  int
	mu             sync.RWMutex
}

func (m *Metrics) IncEnqueued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued++
}

func (m *Metrics) IncDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dropped++
}

func (m *Metrics) AddFlushed(events int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesFlushed++
	m.EventsFlushed += events
}

func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Enqueued:       m.Enqueued,
		Dropped:        m.Dropped,
		BatchesFlushed: m.BatchesFlushed,
		EventsFlushed:  m.EventsFlushed,
		QueueCapacity:  m.QueueCapacity,
	}
}
