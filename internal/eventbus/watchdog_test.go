package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/logging"
)

func TestWatchFinalizesStalledStream(t *testing.T) {
	bus := New()
	bus.Publish(domain.SearchingEvent{Query: "Amber Room history"})
	bus.Publish(domain.FoundEvent{Sources: []domain.Source{
		{URL: "https://a.example/amber", Title: "A"},
		{URL: "https://b.example/room", Title: "B"},
	}})
	bus.Publish(domain.SourceCompleteEvent{URL: "https://a.example/amber", Summary: "summary a"})
	bus.Publish(domain.AnalyzingEvent{})
	bus.Publish(domain.ContentChunkEvent{Chunk: "The Amber Room "})
	bus.Publish(domain.ContentChunkEvent{Chunk: "was lost."})

	var seen []domain.EventKind
	transcript, err := Watch(context.Background(), bus, 30*time.Millisecond, func(e domain.Event) {
		seen = append(seen, e.Kind())
	}, logging.Discard())

	require.ErrorIs(t, err, domain.ErrStalled)
	result, ok := transcript.Result()
	require.True(t, ok)
	require.True(t, result.Partial)
	require.Equal(t, "The Amber Room was lost.", result.Content)
	require.Len(t, result.Sources, 1)
	require.Equal(t, "summary a", result.Sources[0].Summary)
	require.Empty(t, result.FollowUpQuestions)
	require.Equal(t, domain.KindFinalResult, seen[len(seen)-1])

	require.False(t, bus.Publish(domain.ErrorEvent{Message: "too late"}))
}

func TestWatchReturnsCleanlyOnTerminal(t *testing.T) {
	bus := New()
	go func() {
		bus.Publish(domain.SearchingEvent{Query: "q"})
		time.Sleep(5 * time.Millisecond)
		bus.Publish(domain.ContentChunkEvent{Chunk: "hi"})
		bus.Publish(domain.FinalResultEvent{FinalResult: domain.FinalResult{Content: "hi"}})
	}()

	transcript, err := Watch(context.Background(), bus, time.Second, nil, nil)
	require.NoError(t, err)
	result, ok := transcript.Result()
	require.True(t, ok)
	require.False(t, result.Partial)
	require.Equal(t, transcript.Content(), result.Content)
}

func TestWatchIdleBeforeFirstEventDoesNotFire(t *testing.T) {
	bus := New()
	go func() {
		time.Sleep(60 * time.Millisecond)
		bus.Publish(domain.ErrorEvent{Message: "provider down"})
	}()

	transcript, err := Watch(context.Background(), bus, 20*time.Millisecond, nil, nil)
	require.NoError(t, err)
	terminal, ok := transcript.Terminal()
	require.True(t, ok)
	require.Equal(t, domain.ErrorEvent{Message: "provider down"}, terminal)
}

func TestWatchEndsWithAbortWithoutTerminal(t *testing.T) {
	bus := New()
	bus.Publish(domain.SearchingEvent{Query: "q"})
	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Abort()
	}()

	transcript, err := Watch(context.Background(), bus, time.Second, nil, nil)
	require.NoError(t, err)
	_, ok := transcript.Terminal()
	require.False(t, ok)
}

func TestWatchIgnoresSlowStepsBeforeStreaming(t *testing.T) {
	bus := New()
	go func() {
		bus.Publish(domain.SearchingEvent{Query: "Amber Room"})
		time.Sleep(60 * time.Millisecond)
		bus.Publish(domain.FoundEvent{Sources: []domain.Source{{URL: "https://a.example/amber"}}})
		time.Sleep(60 * time.Millisecond)
		bus.Publish(domain.SourceCompleteEvent{URL: "https://a.example/amber", Summary: "s"})
		bus.Publish(domain.AnalyzingEvent{})
		bus.Publish(domain.ContentChunkEvent{Chunk: "Looted in 1941."})
		bus.Publish(domain.FinalResultEvent{FinalResult: domain.FinalResult{Content: "Looted in 1941."}})
	}()

	transcript, err := Watch(context.Background(), bus, 20*time.Millisecond, nil, logging.Discard())
	require.NoError(t, err)
	result, ok := transcript.Result()
	require.True(t, ok)
	require.False(t, result.Partial)
	require.Equal(t, "Looted in 1941.", result.Content)
}
