package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/enquote/internal/event/topic"
)

type testPayload struct {
	Value string
}

func TestBus_PublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	_, err := bus.Subscribe("document.*", Typed(func(ctx context.Context, ev Event[testPayload]) error {
		got = append(got, "wildcard:"+ev.Payload.Value)
		return nil
	}))
	require.NoError(t, err)
	_, err = bus.Subscribe("config.changed", HandlerFunc(func(ctx context.Context, ev any) error {
		got = append(got, "config")
		return nil
	}))
	require.NoError(t, err)

	err = bus.Publish(context.Background(), NewEvent[testPayload]("document.changed", testPayload{Value: "x"}, "test"))
	require.NoError(t, err)

	assert.Equal(t, []string{"wildcard:x"}, got)
	assert.Equal(t, uint64(1), bus.Stats().EventsDelivered)
}

func TestBus_PriorityOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	add := func(name string, p Priority) {
		_, err := bus.SubscribeFunc("a.b", func(ctx context.Context, ev any) error {
			order = append(order, name)
			return nil
		}, WithPriority(p))
		require.NoError(t, err)
	}
	add("low", PriorityLow)
	add("high", PriorityHigh)
	add("normal-1", PriorityNormal)
	add("normal-2", PriorityNormal)

	require.NoError(t, bus.Publish(context.Background(), NewEvent[int]("a.b", 1, "test")))
	assert.Equal(t, []string{"high", "normal-1", "normal-2", "low"}, order)
}

func TestBus_HandlerErrorReachesErrorHandler(t *testing.T) {
	boom := errors.New("boom")
	var reported error
	bus := NewBus(WithErrorHandler(func(ev any, err error) {
		reported = err
	}))

	calledAfter := false
	_, _ = bus.SubscribeFunc("x", func(ctx context.Context, ev any) error { return boom })
	_, _ = bus.SubscribeFunc("x", func(ctx context.Context, ev any) error {
		calledAfter = true
		return nil
	})

	err := bus.Publish(context.Background(), NewEvent[int]("x", 0, "test"))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, reported, boom)
	assert.True(t, calledAfter, "a failing handler must not stop delivery")

	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "x", herr.Topic)
	assert.Equal(t, uint64(1), bus.Stats().HandlerErrors)
}

func TestBus_PanicIsRecovered(t *testing.T) {
	bus := NewBus()
	_, _ = bus.SubscribeFunc("x", func(ctx context.Context, ev any) error {
		panic("bad handler")
	})

	err := bus.Publish(context.Background(), NewEvent[int]("x", 0, "test"))
	assert.ErrorIs(t, err, ErrHandlerPanic)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad handler", perr.Value)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	sub, err := bus.SubscribeFunc("x", func(ctx context.Context, ev any) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(sub))
	assert.ErrorIs(t, bus.Unsubscribe(sub), ErrSubscriptionNotFound)
	assert.ErrorIs(t, bus.Unsubscribe(nil), ErrInvalidSubscription)

	require.NoError(t, bus.Publish(context.Background(), NewEvent[int]("x", 0, "test")))
	assert.Equal(t, 0, count)
	assert.False(t, sub.IsActive())
}

func TestBus_NestedPublish(t *testing.T) {
	bus := NewBus()
	var seen []topic.Topic
	_, _ = bus.SubscribeFunc("**", func(ctx context.Context, ev any) error {
		seen = append(seen, ev.(TopicProvider).EventTopic())
		return nil
	}, WithPriority(PriorityLow))
	_, _ = bus.SubscribeFunc("outer", func(ctx context.Context, ev any) error {
		return bus.Publish(ctx, NewEvent[int]("inner", 0, "test"))
	})

	require.NoError(t, bus.Publish(context.Background(), NewEvent[int]("outer", 0, "test")))
	assert.Equal(t, []topic.Topic{"inner", "outer"}, seen)
}

func TestBus_InvalidInput(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe("", HandlerFunc(func(context.Context, any) error { return nil }))
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = bus.Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	assert.ErrorIs(t, bus.Publish(context.Background(), "not an event"), ErrInvalidEvent)
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.SubscribeFunc("x", func(context.Context, any) error { return nil })

	bus.Close()

	assert.False(t, sub.IsActive())
	assert.ErrorIs(t, bus.Publish(context.Background(), NewEvent[int]("x", 0, "test")), ErrBusClosed)
	_, err := bus.SubscribeFunc("x", func(context.Context, any) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestTypedIgnoresOtherPayloads(t *testing.T) {
	called := false
	h := Typed(func(ctx context.Context, ev Event[testPayload]) error {
		called = true
		return nil
	})

	require.NoError(t, h.Handle(context.Background(), NewEvent[int]("x", 1, "test")))
	assert.False(t, called)
}

func TestNewEventMetadata(t *testing.T) {
	ev := NewEvent[int]("x", 1, "engine").WithCausation("cause")

	assert.NotEmpty(t, ev.Metadata.ID)
	assert.Equal(t, "engine", ev.Metadata.Source)
	assert.Equal(t, "cause", ev.EventMetadata().CausationID)
	assert.False(t, ev.Metadata.Timestamp.IsZero())
}
