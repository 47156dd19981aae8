package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"WebResearcher/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(t *testing.T, ch <-chan domain.Event) []domain.Event {
	t.Helper()
	var out []domain.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("subscription did not close, got %d events", len(out))
		}
	}
}

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := New()
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.True(t, bus.Publish(domain.ContentChunkEvent{Chunk: fmt.Sprintf("%d,", i)}))
	}
	require.True(t, bus.Publish(domain.DoneEvent{}))

	events := drain(t, ch)
	require.Len(t, events, 51)
	for i := 0; i < 50; i++ {
		require.Equal(t, domain.ContentChunkEvent{Chunk: fmt.Sprintf("%d,", i)}, events[i])
	}
	require.Equal(t, domain.KindDone, events[50].Kind())
}

func TestBusFirstTerminalWins(t *testing.T) {
	bus := New()
	require.True(t, bus.Publish(domain.AnalyzingEvent{}))
	require.True(t, bus.Publish(domain.FinalResultEvent{FinalResult: domain.FinalResult{Content: "answer"}}))
	require.False(t, bus.Publish(domain.ErrorEvent{Message: "late failure"}))
	require.False(t, bus.Publish(domain.ContentChunkEvent{Chunk: "late"}))

	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 2)
	terminal, ok := bus.Terminal()
	require.True(t, ok)
	require.Equal(t, domain.KindFinalResult, terminal.Kind())
}

func TestBusConcurrentTerminalWritesAcceptOne(t *testing.T) {
	bus := New()
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var e domain.Event = domain.ErrorEvent{Message: "failure"}
			if i%2 == 0 {
				e = domain.FinalResultEvent{FinalResult: domain.FinalResult{Partial: true}}
			}
			if bus.Publish(e) {
				accepted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	events := drain(t, ch)
	require.Equal(t, int32(1), accepted.Load())
	require.Len(t, events, 1)
	require.True(t, events[0].Terminal())
}

func TestBusCloseIsIdempotent(t *testing.T) {
	bus := New()
	require.True(t, bus.Publish(domain.SearchingEvent{Query: "q"}))
	bus.Close()
	bus.Close()
	require.False(t, bus.Publish(domain.AnalyzingEvent{}))

	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	events := drain(t, ch)

	require.Equal(t, []domain.Event{domain.SearchingEvent{Query: "q"}}, events)
	_, ok := bus.Terminal()
	require.False(t, ok)
}

func TestBusAbortDropsPendingEvents(t *testing.T) {
	bus := New()
	for i := 0; i < 10; i++ {
		bus.Publish(domain.ContentChunkEvent{Chunk: "x"})
	}
	bus.Abort()
	bus.Abort()
	require.False(t, bus.Publish(domain.FinalResultEvent{}))
	require.True(t, bus.Aborted())

	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	require.Empty(t, drain(t, ch))
}

func TestBusAbortUnblocksSlowSubscriber(t *testing.T) {
	bus := New()
	ch, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	bus.Publish(domain.SearchingEvent{Query: "q"})
	bus.Publish(domain.AnalyzingEvent{})

	first := <-ch
	require.Equal(t, domain.KindSearching, first.Kind())

	bus.Abort()
	for range ch {
	}
	require.False(t, bus.Publish(domain.DoneEvent{}))
}

func TestBusSubscribeOnce(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx)
	require.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestBusSubscriptionEndsWithContext(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	require.Empty(t, drain(t, ch))
}
