// Package eventbus provides in-process publish/subscribe for core events.
//
// Publishers never block: each subscriber owns a bounded mailbox channel, and
// a subscriber whose mailbox overflows is dropped from the bus with a debug
// log. Subscriber errors never propagate back to publishers.
package eventbus

import (
	"sync"
	"time"

	"github.com/codegraphhq/codegraph/internal/debug"
)

// EventName identifies an event flowing through the bus.
type EventName string

// Events emitted by the core.
const (
	EventComponentCreated EventName = "component-created"
	EventComponentUpdated EventName = "component-updated"
	EventComponentDeleted EventName = "component-deleted"

	EventRelationshipCreated EventName = "relationship-created"

	EventTaskCreated EventName = "task-created"
	EventTaskUpdated EventName = "task-updated"

	EventComponentsBulkCreated    EventName = "components-bulk-created"
	EventRelationshipsBulkCreated EventName = "relationships-bulk-created"
	EventTasksBulkCreated         EventName = "tasks-bulk-created"

	EventCommandQueued      EventName = "command-queued"
	EventCommandDelivered   EventName = "command-delivered"
	EventAgentWaiting       EventName = "agent-waiting"
	EventAgentWaitCancelled EventName = "agent-wait-cancelled"
)

// DefaultMailboxSize bounds each subscriber's mailbox unless overridden.
const DefaultMailboxSize = 256

// Event is one published record.
type Event struct {
	Name    EventName   `json:"name"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// BulkPayload is the payload shape of the *-bulk-created events.
type BulkPayload struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

// Subscriber receives events through a bounded mailbox. Read from C until it
// closes; it closes when the subscriber is cancelled or dropped for falling
// behind.
type Subscriber struct {
	id     int
	names  map[EventName]bool // nil = all events
	ch     chan Event
	closed bool // guarded by the owning bus's mutex
}

// C returns the mailbox channel.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.Mutex
	subs        map[int]*Subscriber
	nextID      int
	mailboxSize int
}

// New creates a bus with the given per-subscriber mailbox bound.
// Zero or negative means DefaultMailboxSize.
func New(mailboxSize int) *Bus {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &Bus{subs: make(map[int]*Subscriber), mailboxSize: mailboxSize}
}

// Subscribe registers interest in the named events. With no names the
// subscriber receives every event.
func (b *Bus) Subscribe(names ...EventName) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		id: b.nextID,
		ch: make(chan Event, b.mailboxSize),
	}
	b.nextID++
	if len(names) > 0 {
		sub.names = make(map[EventName]bool, len(names))
		for _, n := range names {
			sub.names[n] = true
		}
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its mailbox. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish delivers the event to every interested subscriber without blocking.
// A subscriber whose mailbox is full is dropped from the bus.
func (b *Bus) Publish(name EventName, payload interface{}) {
	ev := Event{Name: name, Payload: payload, At: time.Now().UTC()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.names != nil && !sub.names[name] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			debug.Logf("eventbus: subscriber %d overflowed on %s, dropping", sub.id, name)
			b.removeLocked(sub)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscriber and closes their mailboxes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		b.removeLocked(sub)
	}
}

func (b *Bus) removeLocked(sub *Subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub.id)
	close(sub.ch)
}
