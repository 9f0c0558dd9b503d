package eventbus

import (
	"sync"
	"time"
)

// Topics routed through the bus.
const (
	TopicPairCreated = "pair_created"
)

// Event represents an indexer event routed through the bus.
type Event struct {
	Topic     string
	Height    int64
	Timestamp time.Time
	Data      interface{}
}

// Bus is an in-process topic bus. Delivery to Listen subscriptions is
// at-least-once within the process; ordering across concurrent publishes
// is not guaranteed. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan<- Event
	listeners   map[string][]*listener
	closed      bool
}

// listener is an unbounded per-subscription queue drained by a dedicated
// worker goroutine. Publish appends without ever dropping, so a burst
// larger than any fixed buffer still reaches the handler.
type listener struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newListener() *listener {
	l := &listener{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *listener) enqueue(evt Event) {
	l.mu.Lock()
	l.queue = append(l.queue, evt)
	l.mu.Unlock()
	l.cond.Signal()
}

// next blocks until an event is available or the listener is closed with
// an empty queue.
func (l *listener) next() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) == 0 && !l.closed {
		l.cond.Wait()
	}
	if len(l.queue) == 0 {
		return Event{}, false
	}
	evt := l.queue[0]
	l.queue = l.queue[1:]
	return evt, true
}

func (l *listener) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// New creates a new Bus ready for use.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan<- Event),
		listeners:   make(map[string][]*listener),
	}
}

// Subscribe registers a channel to receive events on the given topic.
// The caller is responsible for creating the channel with sufficient
// buffer capacity; slow subscribers will have events dropped. Use Listen
// for topics that must not lose events.
func (b *Bus) Subscribe(topic string, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
}

// Listen registers a handler for a topic. Each Listen call gets its own
// unbounded queue drained by a dedicated worker goroutine: a slow handler
// never blocks publishers, and no event published before Close is dropped.
func (b *Bus) Listen(topic string, handler func(Event)) {
	l := newListener()
	b.mu.Lock()
	b.listeners[topic] = append(b.listeners[topic], l)
	b.mu.Unlock()
	go func() {
		for {
			evt, ok := l.next()
			if !ok {
				return
			}
			handler(evt)
		}
	}()
}

// Publish sends an event to all subscriptions registered for its topic.
// Listen subscriptions always receive it; plain channel subscribers have
// the event dropped when their buffer is full. No-op after Close.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, l := range b.listeners[evt.Topic] {
		l.enqueue(evt)
	}
	for _, ch := range b.subscribers[evt.Topic] {
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
}

// Close marks the bus as closed and stops the Listen workers once their
// queues drain. Subscriber channels are not closed; that is the caller's
// responsibility.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ls := range b.listeners {
		for _, l := range ls {
			l.close()
		}
	}
}
