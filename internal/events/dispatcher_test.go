package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherInvokesSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var order []string

	d.Subscribe(EventConcernSubmitted, func(_ context.Context, e Event) error {
		order = append(order, "first:"+e.ConcernID)
		return nil
	})
	d.Subscribe(EventConcernSubmitted, func(_ context.Context, e Event) error {
		order = append(order, "second:"+e.ConcernID)
		return nil
	})
	d.Subscribe(EventConcernClosed, func(context.Context, Event) error {
		order = append(order, "closed")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventConcernSubmitted, ConcernID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:c-1", "second:c-1"}, order)
}

func TestDispatcherFailingHandlerDoesNotBlockOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var reached bool

	d.Subscribe(EventConcernEscalated, func(context.Context, Event) error {
		return errors.New("handler exploded")
	})
	d.Subscribe(EventConcernEscalated, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventConcernEscalated, ConcernID: "c-2"})
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventConcernOverdue}))
}
