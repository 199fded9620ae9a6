package event

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/enquote/internal/event/topic"
)

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*Subscription)

// WithPriority sets the handler priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(s *Subscription) {
		s.priority = p
	}
}

// Subscription is a registered handler for a topic pattern.
type Subscription struct {
	id       string
	pattern  topic.Topic
	handler  Handler
	priority Priority
	seq      uint64

	cancelled atomic.Bool
}

func newSubscription(pattern topic.Topic, handler Handler, seq uint64, opts ...SubscriptionOption) *Subscription {
	s := &Subscription{
		id:       uuid.NewString(),
		pattern:  pattern,
		handler:  handler,
		priority: PriorityNormal,
		seq:      seq,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the subscribed topic pattern.
func (s *Subscription) Topic() topic.Topic { return s.pattern }

// Priority returns the handler priority.
func (s *Subscription) Priority() Priority { return s.priority }

// IsActive returns true until the subscription is cancelled.
func (s *Subscription) IsActive() bool { return !s.cancelled.Load() }

// Cancel permanently cancels the subscription.
func (s *Subscription) Cancel() { s.cancelled.Store(true) }
