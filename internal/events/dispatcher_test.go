package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAsyncDispatcherPreservesOrder(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop())
	defer d.Close()

	var mu sync.Mutex
	var seen []int
	handler := func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Seq)
		return nil
	}
	d.Subscribe(EventStatusChanged, handler)
	d.Subscribe(EventUpdateAdded, handler)

	for i := 1; i <= 100; i++ {
		typ := EventStatusChanged
		if i%2 == 0 {
			typ = EventUpdateAdded
		}
		require.NoError(t, d.Publish(context.Background(), Event{Type: typ, Seq: i}))
	}
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 100)
	for i, seq := range seen {
		assert.Equal(t, i+1, seq)
	}
}

func TestAsyncDispatcherPublishDoesNotBlockOnSlowHandler(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop())
	defer d.Close()

	release := make(chan struct{})
	d.Subscribe(EventSLABreached, func(context.Context, Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = d.Publish(context.Background(), Event{Type: EventSLABreached})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on handler")
	}
	close(release)
	d.Flush()
}

func TestAsyncDispatcherSurvivesHandlerFailures(t *testing.T) {
	d := NewAsyncDispatcher(zap.NewNop())

	var calls int
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		panic("worse")
	})
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintCreated}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintCreated}))
	d.Close()

	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, d.Publish(context.Background(), Event{Type: EventComplaintCreated}), ErrDispatcherClosed)
}
