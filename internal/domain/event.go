package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventKind is the wire tag of an event variant.
type EventKind string

const (
	KindSearching          EventKind = "searching"
	KindFound              EventKind = "found"
	KindScraping           EventKind = "scraping"
	KindScreenshotCaptured EventKind = "screenshot-captured"
	KindSourceComplete     EventKind = "source-complete"
	KindAnalyzing          EventKind = "analyzing"
	KindContentChunk       EventKind = "content-chunk"
	KindFinalResult        EventKind = "final-result"
	KindError              EventKind = "error"
	KindDone               EventKind = "done"
)

// ProcessingStage tags a scraping event with the step a source is in.
type ProcessingStage string

const (
	StageFetching    ProcessingStage = "fetching"
	StageSummarizing ProcessingStage = "summarizing"
	StageCapturing   ProcessingStage = "capturing"
	StageFailed      ProcessingStage = "failed"
)

// Event is the closed set of progress events published for one request.
// The unexported accept method seals the set to this package.
type Event interface {
	Kind() EventKind
	Terminal() bool
	accept(v EventVisitor)
}

// EventVisitor handles every event variant. A new variant adds a method here,
// so every consumer must handle it before the code compiles again.
type EventVisitor interface {
	Searching(SearchingEvent)
	Found(FoundEvent)
	Scraping(ScrapingEvent)
	ScreenshotCaptured(ScreenshotCapturedEvent)
	SourceComplete(SourceCompleteEvent)
	Analyzing(AnalyzingEvent)
	ContentChunk(ContentChunkEvent)
	FinalResult(FinalResultEvent)
	Error(ErrorEvent)
	Done(DoneEvent)
}

// Visit dispatches e to the matching visitor method.
func Visit(e Event, v EventVisitor) {
	if e == nil || v == nil {
		return
	}
	e.accept(v)
}

// SearchingEvent marks the start of the provider search.
type SearchingEvent struct {
	Query string `json:"query"`
}

// FoundEvent carries the candidates selected for processing.
type FoundEvent struct {
	Sources []Source `json:"sources"`
}

// ScrapingEvent reports per-source progress as "Index of Total".
type ScrapingEvent struct {
	URL   string          `json:"url"`
	Title string          `json:"title,omitempty"`
	Index int             `json:"index"`
	Total int             `json:"total"`
	Stage ProcessingStage `json:"stage"`
}

// ScreenshotCapturedEvent carries a data URL of the rendered page.
type ScreenshotCapturedEvent struct {
	URL        string `json:"url"`
	Screenshot string `json:"screenshot"`
}

// SourceCompleteEvent marks a source as processed.
type SourceCompleteEvent struct {
	URL        string `json:"url"`
	Summary    string `json:"summary"`
	Screenshot string `json:"screenshot,omitempty"`
}

// AnalyzingEvent marks the start of synthesis.
type AnalyzingEvent struct{}

// ContentChunkEvent is one increment of the streamed answer.
type ContentChunkEvent struct {
	Chunk string `json:"chunk"`
}

// FinalResultEvent is the terminal success event.
type FinalResultEvent struct {
	FinalResult
}

// ErrorEvent is the terminal failure event.
type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent closes a stream that carried no other terminal event.
type DoneEvent struct{}

func (SearchingEvent) Kind() EventKind          { return KindSearching }
func (FoundEvent) Kind() EventKind              { return KindFound }
func (ScrapingEvent) Kind() EventKind           { return KindScraping }
func (ScreenshotCapturedEvent) Kind() EventKind { return KindScreenshotCaptured }
func (SourceCompleteEvent) Kind() EventKind     { return KindSourceComplete }
func (AnalyzingEvent) Kind() EventKind          { return KindAnalyzing }
func (ContentChunkEvent) Kind() EventKind       { return KindContentChunk }
func (FinalResultEvent) Kind() EventKind        { return KindFinalResult }
func (ErrorEvent) Kind() EventKind              { return KindError }
func (DoneEvent) Kind() EventKind               { return KindDone }

func (SearchingEvent) Terminal() bool          { return false }
func (FoundEvent) Terminal() bool              { return false }
func (ScrapingEvent) Terminal() bool           { return false }
func (ScreenshotCapturedEvent) Terminal() bool { return false }
func (SourceCompleteEvent) Terminal() bool     { return false }
func (AnalyzingEvent) Terminal() bool          { return false }
func (ContentChunkEvent) Terminal() bool       { return false }
func (FinalResultEvent) Terminal() bool        { return true }
func (ErrorEvent) Terminal() bool              { return true }
func (DoneEvent) Terminal() bool               { return true }

func (e SearchingEvent) accept(v EventVisitor)          { v.Searching(e) }
func (e FoundEvent) accept(v EventVisitor)              { v.Found(e) }
func (e ScrapingEvent) accept(v EventVisitor)           { v.Scraping(e) }
func (e ScreenshotCapturedEvent) accept(v EventVisitor) { v.ScreenshotCaptured(e) }
func (e SourceCompleteEvent) accept(v EventVisitor)     { v.SourceComplete(e) }
func (e AnalyzingEvent) accept(v EventVisitor)          { v.Analyzing(e) }
func (e ContentChunkEvent) accept(v EventVisitor)       { v.ContentChunk(e) }
func (e FinalResultEvent) accept(v EventVisitor)        { v.FinalResult(e) }
func (e ErrorEvent) accept(v EventVisitor)              { v.Error(e) }
func (e DoneEvent) accept(v EventVisitor)               { v.Done(e) }

// EncodeEvent serializes an event as a flat JSON object tagged with "type".
func EncodeEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode event: nil event")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	fields["type"] = json.RawMessage(strconv.Quote(string(e.Kind())))
	return json.Marshal(fields)
}

// DecodeEvent restores an event produced by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type EventKind `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var (
		event Event
		err   error
	)
	switch envelope.Type {
	case KindSearching:
		var e SearchingEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindFound:
		var e FoundEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindScraping:
		var e ScrapingEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindScreenshotCaptured:
		var e ScreenshotCapturedEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindSourceComplete:
		var e SourceCompleteEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindAnalyzing:
		event = AnalyzingEvent{}
	case KindContentChunk:
		var e ContentChunkEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindFinalResult:
		var e FinalResultEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindError:
		var e ErrorEvent
		err = json.Unmarshal(data, &e)
		event = e
	case KindDone:
		event = DoneEvent{}
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", envelope.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	return event, nil
}

// StripChunks drops content-chunk events so a trace can be stored compactly.
// Replay restores progress events and the final result, not token streaming.
func StripChunks(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Kind() == KindContentChunk {
			continue
		}
		out = append(out, e)
	}
	return out
}
