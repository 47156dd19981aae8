// Package processor fetches, summarizes and optionally screenshots candidate
// sources with a bounded worker pool.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/infrastructure/browser"
	"WebResearcher/internal/ports"
)

const (
	DefaultConcurrency = 4
	MaxConcurrency     = 8
	DefaultPerHostCap  = 2
)

var errAbandoned = errors.New("batch abandoned")

// Options bound the processor.
type Options struct {
	Concurrency    int
	PerHostCap     int
	FetchTimeout   time.Duration
	SummaryTimeout time.Duration
	CaptureTimeout time.Duration
}

// Processor turns candidate sources into processed sources. Summarizer and
// capturer are optional.
type Processor struct {
	fetcher    ports.PageFetcher
	summarizer ports.Summarizer
	capturer   ports.ScreenshotCapturer
	opts       Options
	logger     *slog.Logger
}

// New wires the processor collaborators.
func New(fetcher ports.PageFetcher, summarizer ports.Summarizer, capturer ports.ScreenshotCapturer, opts Options, log *slog.Logger) *Processor {
	switch {
	case opts.Concurrency <= 0:
		opts.Concurrency = DefaultConcurrency
	case opts.Concurrency > MaxConcurrency:
		opts.Concurrency = MaxConcurrency
	}
	if opts.PerHostCap <= 0 {
		opts.PerHostCap = DefaultPerHostCap
	}
	return &Processor{
		fetcher:    fetcher,
		summarizer: summarizer,
		capturer:   capturer,
		opts:       opts,
		logger:     log,
	}
}

// Candidates applies Select with the configured per-host cap.
func (p *Processor) Candidates(sources []domain.Source) []domain.Source {
	return Select(sources, p.opts.PerHostCap)
}

// Batch is one in-flight processing run. Progress events arrive on Events in
// delivery order; the channel is closed once every dispatched source settled.
type Batch struct {
	events  chan domain.Event
	results []domain.Source

	abandon     chan struct{}
	abandonOnce sync.Once
}

// Events returns the progress stream of the batch.
func (b *Batch) Events() <-chan domain.Event { return b.events }

// Results returns the processed sources in input order. It must only be
// called after Events was closed.
func (b *Batch) Results() []domain.Source { return b.results }

// Abandon stops dispatching, unblocks workers and discards their progress.
// In-flight calls are left to finish on their own deadlines.
func (b *Batch) Abandon() {
	b.abandonOnce.Do(func() { close(b.abandon) })
}

func (b *Batch) abandoned() bool {
	select {
	case <-b.abandon:
		return true
	default:
		return false
	}
}

func (b *Batch) send(e domain.Event) error {
	select {
	case b.events <- e:
		return nil
	case <-b.abandon:
		return errAbandoned
	}
}

// Start processes sources concurrently. The caller must drain Events or call
// Abandon.
func (p *Processor) Start(ctx context.Context, sources []domain.Source) *Batch {
	b := &Batch{
		events:  make(chan domain.Event),
		results: domain.CloneSources(sources),
		abandon: make(chan struct{}),
	}
	if b.results == nil {
		b.results = []domain.Source{}
	}

	go func() {
		defer close(b.events)

		var g errgroup.Group
		g.SetLimit(p.opts.Concurrency)
		total := len(b.results)
		for i := range b.results {
			if b.abandoned() {
				break
			}
			g.Go(func() error {
				return p.process(ctx, b, i, total)
			})
		}
		if err := g.Wait(); err != nil {
			p.debug("batch ended early", "error", err)
		}
	}()
	return b
}

// Process runs a single source through the pipeline and returns the result.
func (p *Processor) Process(ctx context.Context, src domain.Source) domain.Source {
	b := p.Start(ctx, []domain.Source{src})
	for range b.Events() {
	}
	return b.Results()[0]
}

func (p *Processor) process(ctx context.Context, b *Batch, i, total int) error {
	if b.abandoned() {
		return errAbandoned
	}
	src := b.results[i]
	progress := func(stage domain.ProcessingStage) error {
		return b.send(domain.ScrapingEvent{URL: src.URL, Title: src.Title, Index: i + 1, Total: total, Stage: stage})
	}

	if err := progress(domain.StageFetching); err != nil {
		return err
	}

	if src.HasContent() {
		fillInlineContent(&src)
	} else {
		page, err := p.fetch(ctx, src.URL)
		if b.abandoned() {
			return errAbandoned
		}
		if err != nil {
			perr := &domain.ProcessingError{URL: src.URL, Stage: domain.StageFetching, Err: err}
			p.debug("source failed", "url", src.URL, "error", perr)
			src.Scraped = false
			src.Error = err.Error()
			b.results[i] = src
			return progress(domain.StageFailed)
		}
		mergePage(&src, page)
	}

	if err := progress(domain.StageSummarizing); err != nil {
		return err
	}
	src.Summary = p.summarize(ctx, src)
	if b.abandoned() {
		return errAbandoned
	}

	if p.capturer != nil {
		if err := progress(domain.StageCapturing); err != nil {
			return err
		}
		if shot := p.capture(ctx, src.URL); shot != "" {
			src.Screenshot = shot
			if err := b.send(domain.ScreenshotCapturedEvent{URL: src.URL, Screenshot: shot}); err != nil {
				return err
			}
		}
	}

	src.Scraped = true
	src.Error = ""
	b.results[i] = src
	return b.send(domain.SourceCompleteEvent{URL: src.URL, Summary: src.Summary, Screenshot: src.Screenshot})
}

func (p *Processor) fetch(ctx context.Context, url string) (domain.Page, error) {
	if p.fetcher == nil {
		return domain.Page{}, errors.New("no page fetcher configured")
	}
	ctx, cancel := withTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()
	return p.fetcher.Fetch(ctx, url)
}

func (p *Processor) summarize(ctx context.Context, src domain.Source) string {
	if p.summarizer == nil {
		return ExtractiveSummary(src)
	}
	ctx, cancel := withTimeout(ctx, p.opts.SummaryTimeout)
	defer cancel()
	summary, err := p.summarizer.Summarize(ctx, src)
	if err != nil || strings.TrimSpace(summary) == "" {
		p.debug("summary fallback", "url", src.URL, "error", err)
		return ExtractiveSummary(src)
	}
	return strings.TrimSpace(summary)
}

func (p *Processor) capture(ctx context.Context, url string) string {
	ctx, cancel := withTimeout(ctx, p.opts.CaptureTimeout)
	defer cancel()
	png, err := p.capturer.Capture(ctx, url)
	if err != nil {
		p.debug("screenshot failed", "url", url, "error", err)
		return ""
	}
	shot, err := browser.DataURL(png)
	if err != nil {
		p.debug("screenshot encode failed", "url", url, "error", err)
		return ""
	}
	return shot
}

func fillInlineContent(src *domain.Source) {
	if strings.TrimSpace(src.ExtractedText) == "" {
		src.ExtractedText = strings.Join(strings.Fields(src.Markdown), " ")
	}
	if strings.TrimSpace(src.Markdown) == "" {
		src.Markdown = src.ExtractedText
	}
}

func mergePage(src *domain.Source, page domain.Page) {
	if src.Title == "" {
		src.Title = page.Title
	}
	if src.Description == "" {
		src.Description = page.Description
	}
	if src.Favicon == "" {
		src.Favicon = page.Favicon
	}
	src.ExtractedText = page.Text
	src.Markdown = page.Markdown
	if src.Markdown == "" {
		src.Markdown = page.Text
	}
	if page.FinalURL != "" && page.FinalURL != src.URL {
		if src.Metadata == nil {
			src.Metadata = map[string]string{}
		}
		src.Metadata["finalUrl"] = page.FinalURL
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (p *Processor) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
