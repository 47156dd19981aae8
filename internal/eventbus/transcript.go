package eventbus

import (
	"strings"

	"WebResearcher/internal/domain"
)

// Transcript is the consumer-side view of a run: every received event plus
// the answer and sources reconstructed from them.
type Transcript struct {
	Events []domain.Event

	content   strings.Builder
	sources   []domain.Source
	index     map[string]int
	completed map[string]bool
	terminal  domain.Event
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		index:     map[string]int{},
		completed: map[string]bool{},
	}
}

// Add records e.
func (t *Transcript) Add(e domain.Event) {
	if e == nil {
		return
	}
	t.Events = append(t.Events, e)
	domain.Visit(e, transcriptVisitor{t})
}

// Content returns the concatenated content chunks received so far.
func (t *Transcript) Content() string {
	return t.content.String()
}

// Terminal returns the terminal event received, if any.
func (t *Transcript) Terminal() (domain.Event, bool) {
	return t.terminal, t.terminal != nil
}

// Started reports whether any event was received.
func (t *Transcript) Started() bool {
	return len(t.Events) > 0
}

// Result returns the final result if the run ended with one.
func (t *Transcript) Result() (domain.FinalResult, bool) {
	if fr, ok := t.terminal.(domain.FinalResultEvent); ok {
		return fr.FinalResult, true
	}
	return domain.FinalResult{}, false
}

// PartialResult builds a best-effort result from what was received: the
// streamed content and the sources that reported completion.
func (t *Transcript) PartialResult() domain.FinalResult {
	sources := make([]domain.Source, 0, len(t.sources))
	for _, src := range t.sources {
		if t.completed[src.Key()] {
			sources = append(sources, src.Clone())
		}
	}
	return domain.FinalResult{
		Content:           t.Content(),
		Sources:           sources,
		FollowUpQuestions: []string{},
		Partial:           true,
	}
}

type transcriptVisitor struct {
	t *Transcript
}

func (v transcriptVisitor) Searching(domain.SearchingEvent) {}

func (v transcriptVisitor) Found(e domain.FoundEvent) {
	for _, src := range e.Sources {
		key := src.Key()
		if _, ok := v.t.index[key]; ok {
			continue
		}
		v.t.index[key] = len(v.t.sources)
		v.t.sources = append(v.t.sources, src.Clone())
	}
}

func (v transcriptVisitor) Scraping(domain.ScrapingEvent) {}

func (v transcriptVisitor) ScreenshotCaptured(e domain.ScreenshotCapturedEvent) {
	if i, ok := v.t.index[domain.NormalizeURL(e.URL)]; ok {
		v.t.sources[i].Screenshot = e.Screenshot
	}
}

func (v transcriptVisitor) SourceComplete(e domain.SourceCompleteEvent) {
	key := domain.NormalizeURL(e.URL)
	i, ok := v.t.index[key]
	if !ok {
		return
	}
	v.t.sources[i].Summary = e.Summary
	v.t.sources[i].Scraped = true
	if e.Screenshot != "" {
		v.t.sources[i].Screenshot = e.Screenshot
	}
	v.t.completed[key] = true
}

func (v transcriptVisitor) Analyzing(domain.AnalyzingEvent) {}

func (v transcriptVisitor) ContentChunk(e domain.ContentChunkEvent) {
	v.t.content.WriteString(e.Chunk)
}

func (v transcriptVisitor) FinalResult(e domain.FinalResultEvent) { v.t.terminal = e }

func (v transcriptVisitor) Error(e domain.ErrorEvent) { v.t.terminal = e }

func (v transcriptVisitor) Done(e domain.DoneEvent) { v.t.terminal = e }
