package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/eventbus"
	"WebResearcher/internal/ports"
	"WebResearcher/internal/processor"
	"WebResearcher/internal/synth"
)

const (
	defaultSearchLimit      = 10
	maxSearchLimit          = 20
	defaultSearchTimeout    = 20 * time.Second
	defaultSynthesisTimeout = 2 * time.Minute
)

// SourceProcessor fans candidate sources out to the worker pool.
type SourceProcessor interface {
	Candidates(sources []domain.Source) []domain.Source
	Start(ctx context.Context, sources []domain.Source) *processor.Batch
}

// AnswerSynthesizer streams the grounded answer and derives follow-ups.
type AnswerSynthesizer interface {
	Stream(ctx context.Context, query domain.Query, sources []domain.Source) *synth.Stream
	FollowUps(ctx context.Context, question, answer string) []string
}

// Deps wires the driven adapters into the orchestrator.
type Deps struct {
	Providers   ports.ProviderChain
	Processor   SourceProcessor
	Synthesizer AnswerSynthesizer
	Logger      *slog.Logger
}

// Settings are the per-engine orchestration knobs.
type Settings struct {
	SearchLimit      int
	WantScrape       bool
	SearchTimeout    time.Duration
	SynthesisTimeout time.Duration
	Context          domain.ContextLimits
}

// SettingsFromConfig derives orchestration settings from configuration.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		SearchLimit:      cfg.Search.Limit,
		WantScrape:       true,
		SearchTimeout:    cfg.Search.Timeout,
		SynthesisTimeout: cfg.Synthesis.Timeout,
		Context: domain.ContextLimits{
			MaxTurns:     cfg.Stream.MaxContextTurns,
			MaxTurnRunes: cfg.Stream.MaxTurnChars,
		},
	}
}

func (s Settings) normalized() Settings {
	switch {
	case s.SearchLimit <= 0:
		s.SearchLimit = defaultSearchLimit
	case s.SearchLimit > maxSearchLimit:
		s.SearchLimit = maxSearchLimit
	}
	if s.SearchTimeout <= 0 {
		s.SearchTimeout = defaultSearchTimeout
	}
	if s.SynthesisTimeout <= 0 {
		s.SynthesisTimeout = defaultSynthesisTimeout
	}
	return s
}

// Request is one research query.
type Request struct {
	Query       string
	Context     []domain.Turn
	Credentials domain.Credentials
}

// Engine starts research runs.
type Engine struct {
	providers   ports.ProviderChain
	processor   SourceProcessor
	synthesizer AnswerSynthesizer
	settings    Settings
	logger      *slog.Logger
}

// NewEngine constructs the orchestration component.
func NewEngine(deps Deps, settings Settings) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		providers:   deps.Providers,
		processor:   deps.Processor,
		synthesizer: deps.Synthesizer,
		settings:    settings.normalized(),
		logger:      logger,
	}
}

// Run is the handle of one research run. Its events are read from Bus, which
// carries exactly one terminal event unless the run was cancelled.
type Run struct {
	ID string

	bus    *eventbus.Bus
	phase  *phaseMachine
	logger *slog.Logger

	cancelled  atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once

	done   chan struct{}
	err    error
	result domain.FinalResult
	hasRes bool
}

// Bus returns the event bus of the run.
func (r *Run) Bus() *eventbus.Bus { return r.bus }

// Events subscribes to the run's event stream.
func (r *Run) Events(ctx context.Context) (<-chan domain.Event, error) {
	return r.bus.Subscribe(ctx)
}

// Phase returns the current orchestrator phase.
func (r *Run) Phase() domain.SearchPhase { return r.phase.get() }

// Cancel aborts the run. Undelivered events are dropped and nothing more is
// published. In-flight external calls finish on their own deadlines and their
// results are discarded.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		r.cancelled.Store(true)
		close(r.cancelCh)
		r.bus.Abort()
	})
}

// Done is closed when the run settled.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run settled and returns its failure: a
// *domain.ValidationError, *domain.ProviderError or *domain.SynthesisError,
// domain.ErrCancelled after Cancel, or domain.ErrStalled when another writer
// finalized the stream first. A partial result is not a failure.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Result returns the final result after Wait, if the run produced one.
func (r *Run) Result() (domain.FinalResult, bool) {
	<-r.done
	return r.result, r.hasRes
}

// Start validates req and launches the run in its own goroutine. Cancelling
// ctx cancels the run.
func (e *Engine) Start(ctx context.Context, req Request) *Run {
	id := uuid.NewString()
	r := &Run{
		ID:       id,
		bus:      eventbus.New(),
		phase:    newPhaseMachine(),
		logger:   e.logger.With("component", "research", "request_id", id),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if strings.TrimSpace(req.Query) == "" {
		r.err = &domain.ValidationError{Field: "query", Reason: "must not be empty"}
		r.phase.settle(domain.PhaseError)
		r.bus.Publish(domain.ErrorEvent{Message: userMessage(r.err)})
		r.logger.Warn("request rejected", "error", r.err)
		close(r.done)
		return r
	}

	query := domain.NewQuery(req.Query, req.Context, e.settings.Context)
	go e.execute(ctx, r, query, req.Credentials)
	return r
}

func (e *Engine) execute(ctx context.Context, r *Run, query domain.Query, creds domain.Credentials) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("research panicked", "panic", rec)
			r.err = fmt.Errorf("internal error: %v", rec)
			r.phase.settle(domain.PhaseError)
			r.bus.Publish(domain.ErrorEvent{Message: "Research failed due to an internal error."})
		}
		if !r.bus.Aborted() {
			if _, ok := r.bus.Terminal(); !ok {
				r.bus.Publish(domain.DoneEvent{})
			}
		}
		r.bus.Close()
		r.logger.Info("research finished", "phase", r.phase.get(), "took", time.Since(started), "error", r.err)
		close(r.done)
	}()

	r.err = e.research(ctx, r, query, creds)
	switch {
	case errors.Is(r.err, domain.ErrCancelled), errors.Is(r.err, domain.ErrStalled):
		r.phase.settle(domain.PhaseCancelled)
	case r.err != nil:
		r.phase.settle(domain.PhaseError)
	}
}

func (e *Engine) research(ctx context.Context, r *Run, query domain.Query, creds domain.Credentials) error {
	// External calls outlive Cancel; each one is bounded by its step deadline.
	callCtx := context.WithoutCancel(ctx)

	if err := e.enter(r, domain.PhaseSearching); err != nil {
		return err
	}
	r.logger.Info("research started", "query", query.Text(), "context_turns", len(query.Context()))
	r.bus.Publish(domain.SearchingEvent{Query: query.Text()})

	found, err := e.search(ctx, callCtx, r, query.Text(), creds)
	if err != nil {
		if isInterrupt(err) {
			return err
		}
		return e.fail(r, err)
	}

	candidates := e.processor.Candidates(found)
	if err := r.interrupted(ctx); err != nil {
		return err
	}
	r.logger.Debug("candidates selected", "found", len(found), "selected", len(candidates))
	r.bus.Publish(domain.FoundEvent{Sources: domain.CloneSources(candidates)})

	var grounding []domain.Source
	if len(candidates) > 0 {
		if err := e.enter(r, domain.PhaseScraping); err != nil {
			return err
		}
		processed, err := e.scrape(ctx, callCtx, r, candidates)
		if err != nil {
			return err
		}
		grounding = domain.GroundingSources(processed)
		r.logger.Info("sources processed", "dispatched", len(candidates), "grounding", len(grounding))
	}

	if err := e.enter(r, domain.PhaseAnalyzing); err != nil {
		return err
	}
	r.bus.Publish(domain.AnalyzingEvent{})

	return e.synthesize(ctx, callCtx, r, query, grounding)
}

// search walks the provider chain: a rate-limited provider is retried once
// with half the limit, any other failure falls through to the next provider.
func (e *Engine) search(ctx, callCtx context.Context, r *Run, text string, creds domain.Credentials) ([]domain.Source, error) {
	var chain []ports.SearchProvider
	if e.providers != nil {
		chain = e.providers.Chain(creds)
	}
	if len(chain) == 0 {
		return nil, &domain.ProviderError{Provider: "none", Kind: domain.ProviderInvalidKey, Err: errors.New("no search provider is configured")}
	}

	var lastErr error
	for _, provider := range chain {
		req := ports.SearchRequest{Query: text, Limit: e.settings.SearchLimit, WantScrape: e.settings.WantScrape}
		sources, err := e.callProvider(ctx, callCtx, r, provider, req)
		if err == nil {
			return sources, nil
		}
		if isInterrupt(err) {
			return nil, err
		}

		if domain.ProviderErrorKindOf(err) == domain.ProviderRateLimited && req.Limit > 1 {
			req.Limit /= 2
			r.logger.Warn("provider rate limited, retrying with smaller limit", "provider", provider.Name(), "limit", req.Limit)
			sources, err = e.callProvider(ctx, callCtx, r, provider, req)
			if err == nil {
				return sources, nil
			}
			if isInterrupt(err) {
				return nil, err
			}
		}

		r.logger.Warn("search provider failed", "provider", provider.Name(), "error", err)
		lastErr = err
	}
	return nil, lastErr
}

func (e *Engine) callProvider(ctx, callCtx context.Context, r *Run, provider ports.SearchProvider, req ports.SearchRequest) ([]domain.Source, error) {
	type outcome struct {
		sources []domain.Source
		err     error
	}
	results := make(chan outcome, 1)
	stepCtx, cancel := context.WithTimeout(callCtx, e.settings.SearchTimeout)
	go func() {
		defer cancel()
		sources, err := provider.Search(stepCtx, req)
		results <- outcome{sources: sources, err: err}
	}()

	select {
	case out := <-results:
		if err := r.interrupted(ctx); err != nil {
			return nil, err
		}
		if out.err != nil {
			return nil, asProviderError(provider.Name(), out.err)
		}
		r.logger.Debug("provider answered", "provider", provider.Name(), "results", len(out.sources))
		return out.sources, nil
	case <-r.cancelCh:
		return nil, domain.ErrCancelled
	case <-ctx.Done():
		r.Cancel()
		return nil, domain.ErrCancelled
	}
}

// scrape forwards processor progress to the bus, so the orchestrator stays
// the only publisher.
func (e *Engine) scrape(ctx, callCtx context.Context, r *Run, candidates []domain.Source) ([]domain.Source, error) {
	batch := e.processor.Start(callCtx, candidates)
	for {
		select {
		case ev, ok := <-batch.Events():
			if !ok {
				return batch.Results(), nil
			}
			if err := r.interrupted(ctx); err != nil {
				batch.Abandon()
				return nil, err
			}
			r.bus.Publish(ev)
		case <-r.cancelCh:
			batch.Abandon()
			return nil, domain.ErrCancelled
		case <-ctx.Done():
			r.Cancel()
			batch.Abandon()
			return nil, domain.ErrCancelled
		}
	}
}

func (e *Engine) synthesize(ctx, callCtx context.Context, r *Run, query domain.Query, grounding []domain.Source) error {
	stepCtx, cancel := context.WithTimeout(callCtx, e.settings.SynthesisTimeout)
	defer cancel()

	stream := e.synthesizer.Stream(stepCtx, query, grounding)
	defer stream.Close()

	for stream.Next() {
		if err := r.interrupted(ctx); err != nil {
			return err
		}
		r.bus.Publish(domain.ContentChunkEvent{Chunk: stream.Chunk()})
	}
	if err := r.interrupted(ctx); err != nil {
		return err
	}

	content := stream.Content()
	if err := stream.Err(); err != nil {
		if content == "" {
			return e.fail(r, err)
		}
		r.logger.Warn("synthesis interrupted, returning partial answer", "error", err, "content_len", len(content))
		return e.finish(r, domain.FinalResult{
			Content:           content,
			Sources:           grounding,
			FollowUpQuestions: []string{},
			Partial:           true,
		})
	}
	if strings.TrimSpace(content) == "" {
		return e.fail(r, &domain.SynthesisError{Err: errors.New("model returned an empty answer")})
	}

	followUps := e.synthesizer.FollowUps(callCtx, query.Text(), content)
	if err := r.interrupted(ctx); err != nil {
		return err
	}
	return e.finish(r, domain.FinalResult{
		Content:           content,
		Sources:           grounding,
		FollowUpQuestions: followUps,
	})
}

func (e *Engine) finish(r *Run, result domain.FinalResult) error {
	if result.Sources == nil {
		result.Sources = []domain.Source{}
	}
	if result.FollowUpQuestions == nil {
		result.FollowUpQuestions = []string{}
	}
	if err := e.enter(r, domain.PhaseComplete); err != nil {
		return err
	}
	if !r.bus.Publish(domain.FinalResultEvent{FinalResult: result}) {
		if r.cancelled.Load() {
			return domain.ErrCancelled
		}
		return domain.ErrStalled
	}
	r.result = result
	r.hasRes = true
	return nil
}

// fail moves the run to the error phase and publishes the terminal error.
func (e *Engine) fail(r *Run, err error) error {
	r.logger.Error("research failed", "phase", r.phase.get(), "error", err)
	r.phase.settle(domain.PhaseError)
	if !r.bus.Publish(domain.ErrorEvent{Message: userMessage(err)}) && !r.cancelled.Load() {
		return domain.ErrStalled
	}
	return err
}

// enter advances the phase; a rejected move ends the run with an error event.
func (e *Engine) enter(r *Run, to domain.SearchPhase) error {
	if err := r.phase.advance(to); err != nil {
		r.logger.Error("phase transition rejected", "error", err)
		return e.fail(r, err)
	}
	r.logger.Debug("phase changed", "phase", to)
	return nil
}

// interrupted reports whether the run must stop at a suspension point.
func (r *Run) interrupted(ctx context.Context) error {
	if r.cancelled.Load() {
		return domain.ErrCancelled
	}
	if ctx.Err() != nil {
		r.Cancel()
		return domain.ErrCancelled
	}
	if r.bus.Closed() {
		return domain.ErrStalled
	}
	return nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, domain.ErrCancelled) || errors.Is(err, domain.ErrStalled)
}

func asProviderError(name string, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := domain.ProviderUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.ProviderNetwork
	}
	return &domain.ProviderError{Provider: name, Kind: kind, Err: err}
}
