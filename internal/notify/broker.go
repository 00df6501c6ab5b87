package notify

import (
	"sync"
	"time"
)

// Topic names one independently observable slice of state.
type Topic string

const (
	// TopicCatalog carries library and sessions load-state changes.
	TopicCatalog Topic = "catalog"
	// TopicSelection carries selection edits, session switches and phase changes.
	TopicSelection Topic = "selection"
	// TopicTimer carries elapsed-time ticks.
	TopicTimer Topic = "timer"
	// TopicOvertime carries overtime alerts.
	TopicOvertime Topic = "overtime"
	// TopicSave carries save outcomes.
	TopicSave Topic = "save"
)

// Event is one published change.
type Event struct {
	Topic Topic
	Time  time.Time
	Data  any
}

type subscriber struct {
	topics map[Topic]struct{}
	ch     chan Event
}

func (s *subscriber) wants(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// Broker is a non-blocking publish/subscribe hub. A subscriber that falls
// behind loses events rather than stalling the publisher, so a slow
// dashboard can never delay a timer tick.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel receiving events for topics (all topics when
// none are given) and a function that cancels the subscription.
func (b *Broker) Subscribe(buffer int, topics ...Topic) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{topics: make(map[Topic]struct{}, len(topics)), ch: make(chan Event, buffer)}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers data on topic to every interested subscriber without
// blocking. It is safe to call on a nil Broker.
func (b *Broker) Publish(topic Topic, data any) {
	if b == nil {
		return
	}
	ev := Event{Topic: topic, Time: time.Now(), Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
