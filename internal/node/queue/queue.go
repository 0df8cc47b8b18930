// Package queue implements the event queue (C3): a topic-keyed fan-out of
// events to registered subscribers, shared by every pipeline task.
package queue

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// Handler consumes one event on one topic. A handler is never called for a
// topic other than the one it was subscribed to.
type Handler func(event.Event) error

// EventQueue maps Topic to an ordered list of subscribers and dispatches
// publish calls synchronously, in registration order, per topic. Delivery
// is at-least-once within the process's lifetime and in publication order
// per topic; there is no ordering guarantee across topics.
//
// The subscriber map is itself readers-writer protected; publish holds the
// read lock only while it copies the topic's handler list and dispatches
// with no queue lock held, so a handler is free to acquire DAL locks or
// call Subscribe without any lock-ordering hazard against the queue
// itself. A handler subscribed during dispatch first receives the next
// published event.
type EventQueue struct {
	mu          sync.RWMutex
	subscribers map[event.Topic][]Handler
	log         lg.Logger
}

// New returns an empty event queue.
func New(log lg.Logger) *EventQueue {
	if log == nil {
		log = lg.Default()
	}
	return &EventQueue{subscribers: map[event.Topic][]Handler{}, log: log}
}

// Subscribe appends handler to topic's subscriber list. Subscription order
// is delivery order.
func (q *EventQueue) Subscribe(topic event.Topic, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers[topic] = append(q.subscribers[topic], handler)
}

// Publish dispatches e to every subscriber of e.Topic(), in registration
// order. Each handler runs to completion or failure; a failing handler
// does not abort dispatch to its siblings. All failures are logged and
// returned together as a single multierror so a caller that cares can
// still observe them.
func (q *EventQueue) Publish(e event.Event) error {
	q.mu.RLock()
	handlers := q.subscribers[e.Topic()]
	// copy under the lock: handlers may themselves call Subscribe, which
	// must never race or deadlock against dispatch of an in-flight event.
	snapshot := make([]Handler, len(handlers))
	copy(snapshot, handlers)
	q.mu.RUnlock()

	var errs *multierror.Error
	for _, h := range snapshot {
		if err := h(e); err != nil {
			q.log.Warnw("event handler failed", "topic", e.Topic().String(), "err", err)
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
