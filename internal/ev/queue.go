// Package ev provides the event queues used to serialize work from
// connection goroutines onto the goroutine that owns the protocol
// state.
package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

// Queue collects pending events and hands them out in bulk.
type Queue = cq.BulkQueue[func() error, *Events]

func NewQueue() *Queue {
	return cq.New(func(v []func() error) *Events {
		return &Events{events: v}
	})
}

// Events is a batch of events taken from a Queue.
type Events struct {
	events []func() error
}

// Len returns the number of events in the batch that have not yet
// been run.
func (q *Events) Len() int {
	return len(q.events)
}

// Flush runs every event in the batch in order, returning all of the
// errors they produced joined together.
func (q *Events) Flush() error {
	var errs []error
	for _, ev := range q.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	q.events = nil
	return errors.Join(errs...)
}

// Poll takes whatever batch is ready on q without blocking and flushes
// it. It returns nil if nothing was ready.
func Poll(q *Queue) error {
	select {
	case events := <-q.Get():
		return events.Flush()
	default:
		return nil
	}
}
