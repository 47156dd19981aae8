package main

import (
	"fmt"
	"io"
	"strings"

	"WebResearcher/internal/domain"
)

// printer renders events as terminal output. Stored traces have no content
// chunks, so the final answer is printed from the result when nothing was
// streamed.
type printer struct {
	w        io.Writer
	verbose  bool
	streamed bool
}

var _ domain.EventVisitor = (*printer)(nil)

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose}
}

// Print renders one event.
func (p *printer) Print(e domain.Event) { domain.Visit(e, p) }

func (p *printer) Searching(e domain.SearchingEvent) {
	fmt.Fprintf(p.w, "Searching: %s\n", e.Query)
}

func (p *printer) Found(e domain.FoundEvent) {
	fmt.Fprintf(p.w, "Found %d sources\n", len(e.Sources))
	if !p.verbose {
		return
	}
	for i, src := range e.Sources {
		fmt.Fprintf(p.w, "  %d. %s\n", i+1, label(src))
	}
}

func (p *printer) Scraping(e domain.ScrapingEvent) {
	if !p.verbose && e.Stage != domain.StageFailed {
		return
	}
	fmt.Fprintf(p.w, "  [%d/%d] %s %s\n", e.Index, e.Total, e.Stage, e.URL)
}

func (p *printer) ScreenshotCaptured(e domain.ScreenshotCapturedEvent) {
	if p.verbose {
		fmt.Fprintf(p.w, "  screenshot %s\n", e.URL)
	}
}

func (p *printer) SourceComplete(e domain.SourceCompleteEvent) {
	if p.verbose {
		fmt.Fprintf(p.w, "  done %s\n", e.URL)
	}
}

func (p *printer) Analyzing(domain.AnalyzingEvent) {
	fmt.Fprint(p.w, "Analyzing...\n\n")
}

func (p *printer) ContentChunk(e domain.ContentChunkEvent) {
	p.streamed = true
	fmt.Fprint(p.w, e.Chunk)
}

func (p *printer) FinalResult(e domain.FinalResultEvent) {
	if !p.streamed {
		fmt.Fprint(p.w, e.Content)
	}
	fmt.Fprintln(p.w)
	if e.Partial {
		fmt.Fprintln(p.w, "\n(answer incomplete)")
	}
	if len(e.Sources) > 0 {
		fmt.Fprintln(p.w, "\nSources:")
		for i, src := range e.Sources {
			fmt.Fprintf(p.w, "  [%d] %s\n", i+1, label(src))
		}
	}
	if len(e.FollowUpQuestions) > 0 {
		fmt.Fprintln(p.w, "\nFollow-up questions:")
		for _, q := range e.FollowUpQuestions {
			fmt.Fprintf(p.w, "  - %s\n", q)
		}
	}
	p.streamed = false
}

func (p *printer) Error(e domain.ErrorEvent) {
	fmt.Fprintf(p.w, "\nError: %s\n", e.Message)
}

func (p *printer) Done(domain.DoneEvent) {}

func label(src domain.Source) string {
	title := strings.TrimSpace(src.Title)
	if title == "" {
		return src.URL
	}
	return fmt.Sprintf("%s (%s)", title, src.URL)
}
