package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// Brave calls the Brave web search API. It returns snippets only.
type Brave struct {
	apiKey string
	cfg    config.BraveConfig
	http   transport
}

var _ ports.SearchProvider = (*Brave)(nil)

// NewBrave constructs a Brave provider for apiKey.
func NewBrave(apiKey string, cfg config.BraveConfig, opts Options) *Brave {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	return &Brave{apiKey: strings.TrimSpace(apiKey), cfg: cfg, http: newTransport(ProviderBrave, opts)}
}

// Name identifies the provider inside the registry.
func (b *Brave) Name() string { return ProviderBrave }

// Search queries Brave with the clamped count.
func (b *Brave) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Source, error) {
	if b.apiKey == "" {
		return nil, b.http.missingKey()
	}
	limit := ClampLimit(req.Limit)

	searchURL, err := url.Parse(b.cfg.BaseURL)
	if err != nil {
		return nil, b.http.fail(domain.ProviderUnknown, 0, err)
	}
	q := searchURL.Query()
	q.Set("q", req.Query)
	q.Set("count", strconv.Itoa(limit))
	searchURL.RawQuery = q.Encode()

	data, err := b.http.getJSON(ctx, searchURL.String(), map[string]string{
		"X-Subscription-Token": b.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Age         string `json:"age"`
				Profile     struct {
					Img string `json:"img"`
				} `json:"profile"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := b.http.decode(data, &resp); err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		md := map[string]string{"provider": ProviderBrave}
		if r.Age != "" {
			md["published"] = r.Age
		}
		sources = append(sources, domain.Source{
			URL:         strings.TrimSpace(r.URL),
			Title:       strings.TrimSpace(r.Title),
			Description: strings.TrimSpace(r.Description),
			Favicon:     strings.TrimSpace(r.Profile.Img),
			Metadata:    md,
		})
		if len(sources) >= limit {
			break
		}
	}
	return sources, nil
}
