// Package synth streams a grounded answer from a language model and derives
// follow-up questions from it.
package synth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

const (
	DefaultFollowUpCount = 3
	MaxFollowUpCount     = 4
)

// Options tune prompts and the follow-up call.
type Options struct {
	SystemPrompt    string
	FollowUpCount   int
	MaxSourceChars  int
	FollowUpTimeout time.Duration
}

// Synthesizer builds prompts and drives the model.
type Synthesizer struct {
	model  ports.LanguageModel
	opts   Options
	logger *slog.Logger
}

// New wires the synthesizer.
func New(model ports.LanguageModel, opts Options, log *slog.Logger) *Synthesizer {
	if opts.FollowUpCount <= 0 {
		opts.FollowUpCount = DefaultFollowUpCount
	}
	if opts.FollowUpCount > MaxFollowUpCount {
		opts.FollowUpCount = MaxFollowUpCount
	}
	return &Synthesizer{model: model, opts: opts, logger: log}
}

// Stream starts generating the answer. Start failures are reported by the
// returned stream's Err.
func (s *Synthesizer) Stream(ctx context.Context, query domain.Query, sources []domain.Source) *Stream {
	if s.model == nil {
		return &Stream{err: errors.New("no language model configured")}
	}
	messages := buildMessages(s.opts.SystemPrompt, query, sources, s.opts.MaxSourceChars)
	inner, err := s.model.Stream(ctx, messages)
	if err != nil {
		return &Stream{err: err}
	}
	return &Stream{inner: inner}
}

// FollowUps asks the model for follow-up questions. Failures are logged and
// yield an empty list.
func (s *Synthesizer) FollowUps(ctx context.Context, question, answer string) []string {
	if s.model == nil || strings.TrimSpace(answer) == "" {
		return []string{}
	}
	if s.opts.FollowUpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FollowUpTimeout)
		defer cancel()
	}
	raw, err := s.model.Complete(ctx, followUpMessages(question, answer, s.opts.FollowUpCount))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("follow-up generation failed", "error", err)
		}
		return []string{}
	}
	return parseFollowUps(raw, s.opts.FollowUpCount)
}

// Stream is one finite, non-resumable answer generation.
type Stream struct {
	inner   ports.TextStream
	chunk   string
	content strings.Builder
	chunks  int
	err     error
	done    bool
}

// Next advances to the next non-empty increment.
func (s *Stream) Next() bool {
	if s.done || s.err != nil || s.inner == nil {
		return false
	}
	for s.inner.Next() {
		chunk := s.inner.Current()
		if chunk == "" {
			continue
		}
		s.chunk = chunk
		s.chunks++
		s.content.WriteString(chunk)
		return true
	}
	s.done = true
	s.chunk = ""
	s.err = s.inner.Err()
	return false
}

// Chunk returns the current increment.
func (s *Stream) Chunk() string { return s.chunk }

// Content returns every increment received so far, concatenated in order.
func (s *Stream) Content() string { return s.content.String() }

// Err returns the failure that ended the stream as a *domain.SynthesisError,
// marked partial when increments were produced before it.
func (s *Stream) Err() error {
	if s.err == nil {
		return nil
	}
	return &domain.SynthesisError{Partial: s.chunks > 0, Err: s.err}
}

// Close releases the underlying model stream.
func (s *Stream) Close() error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
