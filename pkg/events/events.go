package events

import (
	"sync"
	"time"
)

// EventType identifies a job-lifecycle transition.
type EventType string

const (
	JobCreated   EventType = "job.created"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"
)

// Event is a single job-lifecycle notification, published for in-process
// subscribers (e.g. a future admin streaming command) and, if a Producer
// is attached, mirrored onto Kafka for external consumers.
type Event struct {
	Type      EventType
	Function  string
	Handle    string
	Timestamp time.Time
	Message   string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Bus distributes job-lifecycle events to in-process subscribers and, if
// configured, an external Producer.
type Bus struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	producer    Producer
}

// Producer mirrors events to an external sink; KafkaProducer implements
// this over segmentio/kafka-go.
type Producer interface {
	Publish(Event) error
}

// NewBus creates an event bus with no external producer attached.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// SetProducer attaches (or clears, with nil) an external fan-out producer.
func (b *Bus) SetProducer(p Producer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.producer = p
}

// Start begins the bus's distribution loop.
func (b *Bus) Start() {
	go b.run()
}

// Stop stops the bus.
func (b *Bus) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns its channel.
func (b *Bus) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for distribution, stamping its Timestamp if
// unset.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- &event:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) broadcast(event *Event) {
	b.mu.RLock()
	producer := b.producer
	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip.
		}
	}
	b.mu.RUnlock()

	if producer != nil {
		_ = producer.Publish(*event)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
