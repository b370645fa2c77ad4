package core

import "context"

// FlushFunc consumes one batch of events in enqueue order.
type FlushFunc func(ctx context.Context, events []Event)

// Scheduler accumulates events and hands them to a flush callback in
// batches, either when the batch size limit is reached or when the
// flush period elapses, whichever comes first.
type Scheduler interface {
	Enqueue(event Event)
	Start()
	Stop()
}
