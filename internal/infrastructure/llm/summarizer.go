package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

const (
	defaultSummaryInputChars = 6000
	summaryPrompt            = "Summarize the following web page in two or three factual sentences. Reply with the summary only."
)

// Summarizer condenses a processed source with a language model.
type Summarizer struct {
	model    ports.LanguageModel
	maxChars int
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer wires model; maxChars bounds the page text sent per call.
func NewSummarizer(model ports.LanguageModel, maxChars int) *Summarizer {
	if maxChars <= 0 {
		maxChars = defaultSummaryInputChars
	}
	return &Summarizer{model: model, maxChars: maxChars}
}

// Summarize returns a short summary of source.
func (s *Summarizer) Summarize(ctx context.Context, source domain.Source) (string, error) {
	if s == nil || s.model == nil {
		return "", errors.New("summarizer has no model")
	}
	body := source.Markdown
	if strings.TrimSpace(body) == "" {
		body = source.ExtractedText
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("source has no content to summarize")
	}
	if runes := []rune(body); len(runes) > s.maxChars {
		body = string(runes[:s.maxChars])
	}

	var user strings.Builder
	if source.Title != "" {
		fmt.Fprintf(&user, "Title: %s\n", source.Title)
	}
	fmt.Fprintf(&user, "URL: %s\n\n%s", source.URL, body)

	summary, err := s.model.Complete(ctx, []ports.ChatMessage{
		{Role: "system", Content: summaryPrompt},
		{Role: "user", Content: user.String()},
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", source.URL, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summarize %s: empty summary", source.URL)
	}
	return summary, nil
}
