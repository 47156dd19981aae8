// Package fetch downloads pages and extracts their readable content.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

const (
	defaultMaxChars = 40000
	maxBodyBytes    = 2 << 20
	maxRedirects    = 5
)

// Fetcher downloads a page over HTTP and extracts title, description,
// favicon, plain text and markdown from it.
type Fetcher struct {
	client *http.Client
	cfg    config.FetchConfig
	logger *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client. A nil client gets one that applies the
// private network guard on every redirect hop.
func NewFetcher(cfg config.FetchConfig, client *http.Client, log *slog.Logger) *Fetcher {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		allowPrivate := cfg.AllowPrivate
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return checkURL(req.URL.String(), allowPrivate)
			},
		}
	}
	return &Fetcher{client: client, cfg: cfg, logger: log}
}

// Fetch downloads rawURL and extracts its content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Page, error) {
	if err := checkURL(rawURL, f.cfg.AllowPrivate); err != nil {
		return domain.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Page{}, fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read page: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := normalizeContentType(resp.Header.Get("Content-Type"), body)

	page := domain.Page{URL: rawURL, FinalURL: finalURL, ContentType: contentType}
	switch {
	case contentType == "text/html" || contentType == "application/xhtml+xml":
		if err := extractHTML(&page, body); err != nil {
			return domain.Page{}, err
		}
	case strings.HasPrefix(contentType, "text/"):
		text := strings.TrimSpace(string(body))
		page.Text = text
		page.Markdown = text
		page.Favicon = defaultFavicon(finalURL)
	default:
		return domain.Page{}, fmt.Errorf("unsupported content type %s", contentType)
	}

	page.Text = truncateRunes(page.Text, f.cfg.MaxChars)
	page.Markdown = truncateRunes(page.Markdown, f.cfg.MaxChars)
	if page.Text == "" && page.Markdown == "" {
		return domain.Page{}, errors.New("page has no readable content")
	}

	f.debug("page fetched", "url", rawURL, "final_url", finalURL, "content_type", contentType, "chars", len(page.Markdown))
	return page, nil
}

func extractHTML(page *domain.Page, body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	page.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	)
	page.Description = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)
	page.Favicon = resolveFavicon(doc, page.FinalURL)

	doc.Find("script, style, noscript, template").Remove()
	if len(doc.Nodes) > 0 {
		page.Markdown = renderMarkdown(doc.Nodes[0])
	}
	bodySel := doc.Find("body")
	if bodySel.Length() == 0 {
		bodySel = doc.Selection
	}
	page.Text = strings.Join(strings.Fields(bodySel.Text()), " ")
	return nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func resolveFavicon(doc *goquery.Document, pageURL string) string {
	href := ""
	doc.Find("link[rel]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		rel, _ := link.Attr("rel")
		for _, token := range strings.Fields(strings.ToLower(rel)) {
			if token == "icon" {
				href, _ = link.Attr("href")
				return false
			}
		}
		return true
	})
	href = strings.TrimSpace(href)
	if href == "" {
		return defaultFavicon(pageURL)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return defaultFavicon(pageURL)
	}
	return base.ResolveReference(ref).String()
}

func defaultFavicon(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/favicon.ico"}).String()
}

func normalizeContentType(value string, body []byte) string {
	if value == "" {
		value = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		parts := strings.Split(value, ";")
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	return strings.ToLower(mediaType)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "\n\n[...truncated...]"
}

func (f *Fetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
