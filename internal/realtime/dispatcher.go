package realtime

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 16

// Message is a single view event delivered to stream subscribers.
type Message struct {
	ID        string
	EventType string
	Data      any
	Timestamp time.Time
}

// Dispatcher fans view events out to every connected subscriber.
// A subscriber whose buffer is full is evicted and its channel closed, so it
// reconnects and starts from a fresh table instead of missing a row patch.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Dispatcher{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber until ctx is done or cleanup is called.
// The returned channel is closed when the subscriber leaves or is evicted.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Message, func()) {
	sub := &subscriber{
		stream: make(chan Message, d.bufferSize),
	}
	d.register(sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

func (d *Dispatcher) Publish(message Message) {
	if message.EventType == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, sub := range d.subscribers {
		select {
		case sub.stream <- message:
		default:
			delete(d.subscribers, id)
			close(sub.stream)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *Dispatcher) register(sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	sub.id = d.nextID
	d.subscribers[sub.id] = sub
}

func (d *Dispatcher) unregister(subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.subscribers[subscriberID]
	if !ok {
		return
	}
	delete(d.subscribers, subscriberID)
	close(sub.stream)
}
