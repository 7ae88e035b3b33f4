package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultObserverBuffer = 64

// Observer is one connected client. Delivery is best-effort: events for
// an observer whose buffer is full are dropped, never retried.
type Observer struct {
	id string

	mutex  sync.Mutex
	events chan Event
	closed bool
}

func NewObserver(id string) *Observer {
	return &Observer{
		id:     id,
		events: make(chan Event, defaultObserverBuffer),
	}
}

func (o *Observer) ID() string {
	return o.id
}

// Events is the observer's delivery channel, closed on disconnect.
// Same-observer delivery preserves publish order.
func (o *Observer) Events() <-chan Event {
	return o.events
}

func (o *Observer) Deliver(event Event) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.closed {
		return
	}

	select {
	case o.events <- event:
	default:
		log.Debug().Str("observer", o.id).Str("event", string(event.Type)).Msg("Dropped event for slow observer")
	}
}

func (o *Observer) close() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.closed {
		return
	}

	o.closed = true
	close(o.events)
}
