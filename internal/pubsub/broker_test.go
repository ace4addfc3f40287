package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
		return Event[T]{}
	}
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(AnalyzedEvent, "main.clw")

	event := receive(t, ch)
	require.Equal(t, "main.clw", event.Payload)
	require.Equal(t, AnalyzedEvent, event.Type)
	require.False(t, event.Timestamp.IsZero())
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()
	chans := []<-chan Event[int]{broker.Subscribe(ctx), broker.Subscribe(ctx), broker.Subscribe(ctx)}
	require.Equal(t, 3, broker.SubscriberCount())

	broker.Publish(RemovedEvent, 42)

	for i, ch := range chans {
		event := receive(t, ch)
		require.Equal(t, 42, event.Payload, "subscriber %d", i)
		require.Equal(t, RemovedEvent, event.Type, "subscriber %d", i)
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_DropsWhenFull(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Publish(AnalyzedEvent, 1)

	done := make(chan struct{})
	go func() {
		broker.Publish(AnalyzedEvent, 2)
		broker.Publish(AnalyzedEvent, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	require.Equal(t, 1, receive(t, ch).Payload)
	require.Equal(t, int64(2), broker.Dropped())
}

func TestBroker_TypeFilter(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	all := broker.Subscribe(ctx)
	failures := broker.Subscribe(ctx, FailedEvent)
	changes := broker.Subscribe(ctx, AnalyzedEvent, RemovedEvent)

	require.Equal(t, 2, broker.Publish(AnalyzedEvent, "a.clw"))
	require.Equal(t, 2, broker.Publish(FailedEvent, "b.clw"))
	require.Equal(t, 1, broker.Publish(EntryEvent, "log line"))

	require.Equal(t, "a.clw", receive(t, all).Payload)
	require.Equal(t, "b.clw", receive(t, all).Payload)
	require.Equal(t, "log line", receive(t, all).Payload)

	require.Equal(t, "b.clw", receive(t, failures).Payload)
	require.Equal(t, "a.clw", receive(t, changes).Payload)
	require.Empty(t, failures)
	require.Empty(t, changes)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ch1 := broker.Subscribe(context.Background())
	ch2 := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close() // idempotent

	for _, ch := range []<-chan Event[string]{ch1, ch2} {
		_, ok := <-ch
		require.False(t, ok)
	}
	require.Equal(t, 0, broker.SubscriberCount())

	// Publishing and subscribing after close are no-ops.
	require.Zero(t, broker.Publish(FailedEvent, "x"))
	_, ok := <-broker.Subscribe(context.Background())
	require.False(t, ok)
}

func TestListener_Next(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(ctx, broker)

	broker.Publish(FailedEvent, "missing.clw")
	event, ok := l.Next()
	require.True(t, ok)
	require.Equal(t, FailedEvent, event.Type)
	require.Equal(t, "missing.clw", event.Payload)

	cancel()
	_, ok = l.Next()
	require.False(t, ok)
}

func TestListener_Types(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	l := NewListener(context.Background(), broker, RemovedEvent)
	broker.Publish(AnalyzedEvent, "skipped.clw")
	broker.Publish(RemovedEvent, "gone.clw")

	event, ok := l.Next()
	require.True(t, ok)
	require.Equal(t, "gone.clw", event.Payload)
}

func TestListener_BrokerClosed(t *testing.T) {
	broker := NewBroker[int]()
	l := NewListener(context.Background(), broker)
	broker.Close()

	_, ok := l.Next()
	require.False(t, ok)
}
