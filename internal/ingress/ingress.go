// Package ingress is the identified progress bus of spec §4.L: feeds
// with a total of 1.0 and fractional deltas, weakly tracked so an
// aborted producer releases its feed, plus a bounded shutdown drain.
// A subscriber map fans events out without blocking producers.
package ingress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ID is an opaque handle to a progress feed.
type ID string

// Event is one progress notification, corresponding to spec's outbound
// "ingress" event (§6).
type Event struct {
	ID        ID
	Type      string
	Description string
	Fraction  float64 // cumulative progress in [0, 1]
	Message   string
	Done      bool
}

type feed struct {
	total       float64
	accumulated float64
	done        bool
}

// Bus is the process-wide ingress bus. One Bus should be constructed
// at startup and shared, like Directories and fetch.Client.
type Bus struct {
	mu          sync.Mutex
	feeds       map[ID]*feed
	subscribers map[uint64]chan Event
	nextSubID   uint64
}

func New() *Bus {
	return &Bus{
		feeds:       make(map[ID]*feed),
		subscribers: make(map[uint64]chan Event),
	}
}

// Subscribe returns a channel of events and an unsubscribe func.
func (b *Bus) Subscribe(bufSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Event, bufSize)
	b.subscribers[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
}

// Publish broadcasts an arbitrary outbound event (spec §6's
// cluster_payload/process/message events ride the same subscriber fan-out
// as progress events, just outside the Init/Send/Complete feed bookkeeping).
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publish(evt)
}

func (b *Bus) publish(evt Event) {
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// slow subscriber: progress events are supersede-able, drop.
		}
	}
}

// Init starts a new feed with the given total (default 1.0) and
// returns its ID.
func (b *Bus) Init(feedType, description string, total float64) ID {
	if total <= 0 {
		total = 1.0
	}
	id := ID(uuid.NewString())

	b.mu.Lock()
	b.feeds[id] = &feed{total: total}
	b.mu.Unlock()

	b.publish(Event{ID: id, Type: feedType, Description: description})
	return id
}

// Send increments the feed's progress by delta (a fraction of total)
// and emits an event; message is optional context for the UI.
func (b *Bus) Send(id ID, delta float64, message string) {
	b.mu.Lock()
	f, ok := b.feeds[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	f.accumulated += delta
	fraction := f.accumulated / f.total
	if fraction > 1 {
		fraction = 1
	}
	b.mu.Unlock()

	b.publish(Event{ID: id, Fraction: fraction, Message: message})
}

// Complete marks a feed done and releases it (weak-map semantics: once
// complete or dropped, Send on a stale ID is a silent no-op above).
func (b *Bus) Complete(id ID) {
	b.mu.Lock()
	f, ok := b.feeds[id]
	if ok {
		f.done = true
		delete(b.feeds, id)
	}
	b.mu.Unlock()
	if ok {
		b.publish(Event{ID: id, Fraction: 1, Done: true})
	}
}

// Drop releases a feed without marking it done — used when a producer
// aborts (e.g. install rolled back) so the feed doesn't linger.
func (b *Bus) Drop(id ID) {
	b.mu.Lock()
	delete(b.feeds, id)
	b.mu.Unlock()
}

// ActiveCount reports the number of live feeds, used by Shutdown.
func (b *Bus) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

// Shutdown waits for all outstanding feeds to complete or be dropped,
// bounded by timeout, per spec §4.L/§5.
func (b *Bus) Shutdown(ctx context.Context, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
		}
	}
}

// SubIngress scales a child step's deltas onto a parent feed, per spec
// §4.L: send(parent, delta*share).
type SubIngress struct {
	Bus    *Bus
	Parent ID
	Share  float64
}

func (s SubIngress) Send(delta float64, message string) {
	if s.Bus == nil || s.Parent == "" {
		return
	}
	s.Bus.Send(s.Parent, delta*s.Share, message)
}
