package search

import (
	"context"
	"strings"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// Exa calls the Exa search API.
type Exa struct {
	apiKey string
	cfg    config.ExaConfig
	http   transport
}

var _ ports.SearchProvider = (*Exa)(nil)

// NewExa constructs an Exa provider for apiKey.
func NewExa(apiKey string, cfg config.ExaConfig, opts Options) *Exa {
	if cfg.Type == "" {
		cfg.Type = "auto"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.exa.ai"
	}
	return &Exa{apiKey: strings.TrimSpace(apiKey), cfg: cfg, http: newTransport(ProviderExa, opts)}
}

// Name identifies the provider inside the registry.
func (e *Exa) Name() string { return ProviderExa }

// Search posts a query to Exa and, for scrape requests, asks for page text.
func (e *Exa) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Source, error) {
	if e.apiKey == "" {
		return nil, e.http.missingKey()
	}
	limit := ClampLimit(req.Limit)

	payload := map[string]any{
		"query":      req.Query,
		"type":       e.cfg.Type,
		"numResults": limit,
	}
	if req.WantScrape {
		text := any(true)
		if e.cfg.TextMaxChars > 0 {
			text = map[string]any{"maxCharacters": e.cfg.TextMaxChars}
		}
		payload["contents"] = map[string]any{"text": text}
	}

	data, err := e.http.postJSON(ctx, searchURL(e.cfg.BaseURL, "/search"), map[string]string{
		"x-api-key": e.apiKey,
	}, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []struct {
			Title      string   `json:"title"`
			URL        string   `json:"url"`
			Author     string   `json:"author"`
			Published  string   `json:"publishedDate"`
			Favicon    string   `json:"favicon"`
			Text       string   `json:"text"`
			Highlights []string `json:"highlights"`
		} `json:"results"`
	}
	if err := e.http.decode(data, &resp); err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		desc := ""
		if len(r.Highlights) > 0 {
			desc = strings.TrimSpace(r.Highlights[0])
		} else if r.Text != "" {
			desc = truncate(r.Text, 240)
		}
		md := map[string]string{"provider": ProviderExa}
		if r.Author != "" {
			md["author"] = strings.TrimSpace(r.Author)
		}
		if r.Published != "" {
			md["published"] = r.Published
		}
		src := domain.Source{
			URL:         strings.TrimSpace(r.URL),
			Title:       strings.TrimSpace(r.Title),
			Description: desc,
			Favicon:     strings.TrimSpace(r.Favicon),
			Metadata:    md,
		}
		if req.WantScrape {
			src.ExtractedText = strings.TrimSpace(r.Text)
		}
		sources = append(sources, src)
		if len(sources) >= limit {
			break
		}
	}
	return sources, nil
}
