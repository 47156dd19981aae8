package search

import (
	"context"
	"strings"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// Tavily calls the Tavily search API. With WantScrape it asks for the raw page
// content so the processor can skip the fetch step.
type Tavily struct {
	apiKey string
	cfg    config.TavilyConfig
	http   transport
}

var _ ports.SearchProvider = (*Tavily)(nil)

// NewTavily constructs a Tavily provider for apiKey.
func NewTavily(apiKey string, cfg config.TavilyConfig, opts Options) *Tavily {
	if cfg.Depth == "" {
		cfg.Depth = "basic"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	return &Tavily{apiKey: strings.TrimSpace(apiKey), cfg: cfg, http: newTransport(ProviderTavily, opts)}
}

// Name identifies the provider inside the registry.
func (t *Tavily) Name() string { return ProviderTavily }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Source, error) {
	if t.apiKey == "" {
		return nil, t.http.missingKey()
	}
	limit := ClampLimit(req.Limit)

	payload := map[string]any{
		"query":               req.Query,
		"search_depth":        t.cfg.Depth,
		"max_results":         limit,
		"include_raw_content": req.WantScrape,
		"include_favicon":     true,
	}
	data, err := t.http.postJSON(ctx, searchURL(t.cfg.BaseURL, "/search"), map[string]string{
		"Authorization": "Bearer " + t.apiKey,
	}, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []struct {
			Title      string  `json:"title"`
			URL        string  `json:"url"`
			Content    string  `json:"content"`
			RawContent string  `json:"raw_content"`
			Favicon    string  `json:"favicon"`
			Score      float64 `json:"score"`
		} `json:"results"`
	}
	if err := t.http.decode(data, &resp); err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		src := domain.Source{
			URL:         strings.TrimSpace(r.URL),
			Title:       strings.TrimSpace(r.Title),
			Description: truncate(r.Content, 300),
			Favicon:     strings.TrimSpace(r.Favicon),
			Metadata:    map[string]string{"provider": ProviderTavily},
		}
		if req.WantScrape {
			src.Markdown = strings.TrimSpace(r.RawContent)
		}
		sources = append(sources, src)
		if len(sources) >= limit {
			break
		}
	}
	return sources, nil
}
