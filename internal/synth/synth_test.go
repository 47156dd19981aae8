package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

type scriptedStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Current() string { return s.chunks[s.pos-1] }
func (s *scriptedStream) Err() error      { return s.err }
func (s *scriptedStream) Close() error    { s.closed = true; return nil }

type scriptedModel struct {
	stream      *scriptedStream
	streamErr   error
	completion  string
	completeErr error

	streamed  []ports.ChatMessage
	completed []ports.ChatMessage
}

func (m *scriptedModel) Stream(_ context.Context, messages []ports.ChatMessage) (ports.TextStream, error) {
	m.streamed = messages
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return m.stream, nil
}

func (m *scriptedModel) Complete(_ context.Context, messages []ports.ChatMessage) (string, error) {
	m.completed = messages
	return m.completion, m.completeErr
}

func drain(s *Stream) []string {
	var out []string
	for s.Next() {
		out = append(out, s.Chunk())
	}
	return out
}

func TestStreamYieldsIncrementsInOrder(t *testing.T) {
	model := &scriptedModel{stream: &scriptedStream{chunks: []string{"The Amber Room ", "", "was looted [1]."}}}
	s := New(model, Options{MaxSourceChars: 5}, nil)

	query := domain.NewQuery("What happened to the Amber Room?", []domain.Turn{{Query: "prior q", Response: "prior a"}}, domain.ContextLimits{})
	stream := s.Stream(context.Background(), query, []domain.Source{
		{URL: "https://a.example/", Title: "Amber", Summary: "Looted in 1941.", Markdown: "abcdefghij", Scraped: true},
		{URL: "https://b.example/", Scraped: true},
	})

	require.Equal(t, []string{"The Amber Room ", "was looted [1]."}, drain(stream))
	require.NoError(t, stream.Err())
	require.Equal(t, "The Amber Room was looted [1].", stream.Content())
	require.False(t, stream.Next())
	require.NoError(t, stream.Close())
	require.True(t, model.stream.closed)

	require.Len(t, model.streamed, 4)
	require.Equal(t, "system", model.streamed[0].Role)
	require.Equal(t, DefaultSystemPrompt, model.streamed[0].Content)
	require.Equal(t, ports.ChatMessage{Role: "user", Content: "prior q"}, model.streamed[1])
	require.Equal(t, ports.ChatMessage{Role: "assistant", Content: "prior a"}, model.streamed[2])

	prompt := model.streamed[3].Content
	require.Contains(t, prompt, "[1] Amber\nURL: https://a.example/")
	require.Contains(t, prompt, "Summary: Looted in 1941.")
	require.Contains(t, prompt, "abcde...")
	require.NotContains(t, prompt, "abcdef")
	require.Contains(t, prompt, "[2] https://b.example/")
	require.True(t, strings.HasSuffix(prompt, "Question: What happened to the Amber Room?"))
}

func TestStreamWithoutSourcesSaysSo(t *testing.T) {
	model := &scriptedModel{stream: &scriptedStream{chunks: []string{"x"}}}
	s := New(model, Options{SystemPrompt: "custom"}, nil)

	drain(s.Stream(context.Background(), domain.NewQuery("q", nil, domain.ContextLimits{}), nil))
	require.Equal(t, "custom", model.streamed[0].Content)
	require.Contains(t, model.streamed[1].Content, "No web sources could be retrieved")
}

func TestStreamFailureBeforeContent(t *testing.T) {
	s := New(&scriptedModel{streamErr: errors.New("401 unauthorized")}, Options{}, nil)
	stream := s.Stream(context.Background(), domain.NewQuery("q", nil, domain.ContextLimits{}), nil)

	require.False(t, stream.Next())
	var serr *domain.SynthesisError
	require.ErrorAs(t, stream.Err(), &serr)
	require.False(t, serr.Partial)
	require.NoError(t, stream.Close())
}

func TestStreamFailureAfterContentIsPartial(t *testing.T) {
	model := &scriptedModel{stream: &scriptedStream{chunks: []string{"partial "}, err: errors.New("connection dropped")}}
	stream := New(model, Options{}, nil).Stream(context.Background(), domain.NewQuery("q", nil, domain.ContextLimits{}), nil)

	require.Equal(t, []string{"partial "}, drain(stream))
	var serr *domain.SynthesisError
	require.ErrorAs(t, stream.Err(), &serr)
	require.True(t, serr.Partial)
	require.Equal(t, "partial ", stream.Content())
}

func TestFollowUpsParsesAndCaps(t *testing.T) {
	model := &scriptedModel{completion: "1. Who built it?\n- Where is it now?\n\n* \"Who built it?\"\n2) When was it rebuilt?\n2024 restoration plans?\nExtra one?"}
	s := New(model, Options{FollowUpCount: 9}, nil)

	got := s.FollowUps(context.Background(), "amber room", "The answer.")
	require.Equal(t, []string{"Who built it?", "Where is it now?", "When was it rebuilt?", "2024 restoration plans?"}, got)
	require.Contains(t, model.completed[0].Content, "Suggest 4 short follow-up questions")
}

func TestFollowUpsFailureIsIsolated(t *testing.T) {
	s := New(&scriptedModel{completeErr: errors.New("timeout")}, Options{}, nil)
	got := s.FollowUps(context.Background(), "q", "answer")
	require.NotNil(t, got)
	require.Empty(t, got)

	require.Empty(t, s.FollowUps(context.Background(), "q", "   "))
}
