package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses the oldest pending notices.
const subscriberBuffer = 16

// subscription represents a subscriber's delivery channel.
type subscription struct {
	id string
	ch chan Notice
}

// Center manages notice subscriptions and broadcasting. Publishing never
// blocks: slow subscribers drop notices rather than stalling the publisher.
type Center struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	closed        bool
}

// NewCenter creates a new notice center.
func NewCenter() *Center {
	return &Center{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a subscriber and returns its ID and delivery channel.
func (c *Center) Subscribe() (string, <-chan Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &subscription{
		id: uuid.New().String(),
		ch: make(chan Notice, subscriberBuffer),
	}
	c.subscriptions[sub.id] = sub
	return sub.id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Center) Unsubscribe(subscriptionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subscriptions[subscriptionID]; ok {
		delete(c.subscriptions, subscriptionID)
		close(sub.ch)
	}
}

// Publish broadcasts a notice to all subscribers and returns it with its
// sequence number and timestamp filled in.
func (c *Center) Publish(severity Severity, code, message string) Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sequenceNo++
	n := Notice{
		Severity:   severity,
		Code:       code,
		Message:    message,
		Time:       time.Now(),
		SequenceNo: c.sequenceNo,
	}

	if c.closed {
		return n
	}

	for _, sub := range c.subscriptions {
		select {
		case sub.ch <- n:
		default:
			// Subscriber is not draining; drop the oldest notice to make
			// room so the newest one is always observable.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- n:
			default:
			}
		}
	}
	return n
}

// SubscriberCount returns the number of active subscribers.
func (c *Center) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

// Close closes the center and all subscriber channels.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, sub := range c.subscriptions {
		delete(c.subscriptions, id)
		close(sub.ch)
	}
}
