package ports

import (
	"context"

	"WebResearcher/internal/domain"
)

// SearchRequest is the normalized input of a search provider call.
type SearchRequest struct {
	Query      string
	Limit      int
	WantScrape bool
}

// SearchProvider returns ranked candidate sources from one search backend.
// Failures are reported as *domain.ProviderError.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]domain.Source, error)
}

// ProviderChain resolves the ordered providers to try for one request.
type ProviderChain interface {
	Chain(creds domain.Credentials) []SearchProvider
}

// PageFetcher downloads a page and extracts its readable content.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// Summarizer condenses a processed source into a few sentences.
type Summarizer interface {
	Summarize(ctx context.Context, source domain.Source) (string, error)
}

// ScreenshotCapturer renders a page and returns a PNG image.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// ChatMessage is a role-tagged prompt message.
type ChatMessage struct {
	Role    string
	Content string
}

// TextStream yields generated text increments in order.
type TextStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// LanguageModel generates text, either streamed or in one piece.
type LanguageModel interface {
	Stream(ctx context.Context, messages []ChatMessage) (TextStream, error)
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ConversationRepository persists conversation history for replay.
type ConversationRepository interface {
	Save(ctx context.Context, conversation domain.Conversation) error
	Get(ctx context.Context, id string) (domain.Conversation, error)
	List(ctx context.Context, limit int) ([]domain.ConversationSummary, error)
}
