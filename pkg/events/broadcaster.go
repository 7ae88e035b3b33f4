package events

import (
	"sync"
)

// Broadcaster owns topic membership for all connected observers.
// Publishes heavily outnumber membership changes so membership sits
// behind a RWMutex and publishers only ever take the read lock.
type Broadcaster struct {
	mutex sync.RWMutex

	topics    map[Topic]map[*Observer]struct{}
	observers map[*Observer]map[Topic]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		topics:    map[Topic]map[*Observer]struct{}{},
		observers: map[*Observer]map[Topic]struct{}{},
	}
}

func (b *Broadcaster) Subscribe(observer *Observer, topic Topic) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.topics[topic] == nil {
		b.topics[topic] = map[*Observer]struct{}{}
	}
	b.topics[topic][observer] = struct{}{}

	if b.observers[observer] == nil {
		b.observers[observer] = map[Topic]struct{}{}
	}
	b.observers[observer][topic] = struct{}{}
}

func (b *Broadcaster) Unsubscribe(observer *Observer, topic Topic) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.removeMembership(observer, topic)
}

// Disconnect idempotently removes all of the observer's subscriptions
// and closes its delivery channel
func (b *Broadcaster) Disconnect(observer *Observer) {
	b.mutex.Lock()

	for topic := range b.observers[observer] {
		b.removeMembership(observer, topic)
	}
	delete(b.observers, observer)

	b.mutex.Unlock()

	observer.close()
}

func (b *Broadcaster) removeMembership(observer *Observer, topic Topic) {
	if members := b.topics[topic]; members != nil {
		delete(members, observer)

		if len(members) == 0 {
			delete(b.topics, topic)
		}
	}

	if topics := b.observers[observer]; topics != nil {
		delete(topics, topic)
	}
}

// Publish delivers the event to every observer subscribed to the topic
// at the moment of publish. Observers subscribing afterwards never see
// it; there is no replay and no delivery tracking.
func (b *Broadcaster) Publish(topic Topic, eventType EventType, body interface{}) {
	event := NewEvent(eventType, body)

	b.mutex.RLock()
	members := make([]*Observer, 0, len(b.topics[topic]))
	for observer := range b.topics[topic] {
		members = append(members, observer)
	}
	b.mutex.RUnlock()

	for _, observer := range members {
		observer.Deliver(event)
	}
}

// Shutdown disconnects every remaining observer
func (b *Broadcaster) Shutdown() {
	b.mutex.Lock()
	observers := make([]*Observer, 0, len(b.observers))
	for observer := range b.observers {
		observers = append(observers, observer)
	}
	b.mutex.Unlock()

	for _, observer := range observers {
		b.Disconnect(observer)
	}
}
