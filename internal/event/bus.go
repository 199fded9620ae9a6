package event

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/enquote/internal/event/topic"
)

// Bus delivers events synchronously to subscribers whose pattern matches
// the event topic. Handlers run in the publisher's goroutine, ordered by
// priority and then by subscription order, so a publisher observes every
// side effect of its event before Publish returns.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	seq    uint64
	closed bool

	onError ErrorHandler

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithErrorHandler sets the handler that receives subscriber failures.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(b *Bus) {
		b.onError = h
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events whose topic matches pattern.
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.seq++
	sub := newSubscription(pattern, handler, b.seq, opts...)
	b.subs = append(b.subs, sub)
	sort.SliceStable(b.subs, func(i, j int) bool {
		if b.subs[i].priority != b.subs[j].priority {
			return b.subs[i].priority < b.subs[j].priority
		}
		return b.subs[i].seq < b.subs[j].seq
	})
	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (*Subscription, error) {
	return b.Subscribe(pattern, fn, opts...)
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Publish delivers event to every matching subscriber.
// Handler failures are reported to the error handler and returned joined.
func (b *Bus) Publish(ctx context.Context, event any) error {
	tp, ok := event.(TopicProvider)
	if !ok || tp.EventTopic() == "" {
		return ErrInvalidEvent
	}
	eventTopic := tp.EventTopic()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	var matched []*Subscription
	for _, s := range b.subs {
		if s.IsActive() && eventTopic.Matches(s.pattern) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)

	var errs []error
	for _, sub := range matched {
		if !sub.IsActive() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := b.deliver(ctx, sub, event)
		if err != nil {
			herr := &HandlerError{SubscriptionID: sub.id, Topic: eventTopic.String(), Err: err}
			b.failed.Add(1)
			if b.onError != nil {
				b.onError(event, herr)
			}
			errs = append(errs, herr)
			continue
		}

		b.delivered.Add(1)
	}

	return errors.Join(errs...)
}

// deliver runs one handler, converting a panic into a PanicError.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return sub.handler.Handle(ctx, event)
}

// Close stops delivery. Subsequent Publish and Subscribe calls fail.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, s := range b.subs {
		s.Cancel()
	}
	b.subs = nil
}

// Stats holds delivery counters.
type Stats struct {
	EventsPublished   uint64
	EventsDelivered   uint64
	HandlerErrors     uint64
	ActiveSubscribers int
}

// String returns a short summary of the counters.
func (s Stats) String() string {
	return fmt.Sprintf("published=%d delivered=%d errors=%d subscribers=%d",
		s.EventsPublished, s.EventsDelivered, s.HandlerErrors, s.ActiveSubscribers)
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	active := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		EventsPublished:   b.published.Load(),
		EventsDelivered:   b.delivered.Load(),
		HandlerErrors:     b.failed.Load(),
		ActiveSubscribers: active,
	}
}
