package search

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// DuckDuckGo scrapes the keyless DuckDuckGo lite results page.
type DuckDuckGo struct {
	baseURL string
	http    transport
}

var _ ports.SearchProvider = (*DuckDuckGo)(nil)

// NewDuckDuckGo constructs the lite page scraper.
func NewDuckDuckGo(cfg config.DuckDuckGoConfig, opts Options) *DuckDuckGo {
	base := cfg.BaseURL
	if base == "" {
		base = "https://lite.duckduckgo.com/lite/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &DuckDuckGo{baseURL: base, http: newTransport(ProviderDuckDuckGo, opts)}
}

// Name identifies the provider inside the registry.
func (d *DuckDuckGo) Name() string { return ProviderDuckDuckGo }

// Search posts the query form and parses result links with their snippets.
func (d *DuckDuckGo) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Source, error) {
	limit := ClampLimit(req.Limit)
	form := url.Values{}
	form.Set("q", req.Query)
	body := form.Encode()

	data, err := d.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, d.http.fail(domain.ProviderUnknown, 0, err)
	}
	return extractResults(doc, limit), nil
}

func extractResults(doc *goquery.Document, limit int) []domain.Source {
	snippets := doc.Find("td.result-snippet")
	var sources []domain.Source
	seen := map[string]struct{}{}

	doc.Find("a.result-link").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		target := resolveResultURL(href)
		title := strings.TrimSpace(link.Text())
		if target == "" || title == "" {
			return true
		}
		key := domain.NormalizeURL(target)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}

		desc := ""
		if i < snippets.Length() {
			desc = strings.Join(strings.Fields(snippets.Eq(i).Text()), " ")
		}
		sources = append(sources, domain.Source{
			URL:         target,
			Title:       title,
			Description: desc,
			Metadata:    map[string]string{"provider": ProviderDuckDuckGo},
		})
		return len(sources) < limit
	})
	return sources
}

// resolveResultURL unwraps DuckDuckGo redirect links.
func resolveResultURL(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") {
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
