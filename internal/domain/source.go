package domain

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

// Source is a discovered web page together with the content derived from it.
type Source struct {
	URL           string            `json:"url"`
	Title         string            `json:"title,omitempty"`
	Description   string            `json:"description,omitempty"`
	ExtractedText string            `json:"extractedText,omitempty"`
	Markdown      string            `json:"markdown,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Favicon       string            `json:"favicon,omitempty"`
	Screenshot    string            `json:"screenshot,omitempty"`
	Scraped       bool              `json:"scraped"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// HasContent reports whether the source already carries page content,
// e.g. because the search provider scraped it inline.
func (s Source) HasContent() bool {
	return strings.TrimSpace(s.Markdown) != "" || strings.TrimSpace(s.ExtractedText) != ""
}

// Key returns the identity key of the source.
func (s Source) Key() string {
	return NormalizeURL(s.URL)
}

// Host returns the secondary dedup key of the source.
func (s Source) Host() string {
	return HostKey(s.URL)
}

// Clone returns a deep copy so a published value is never shared with a writer.
func (s Source) Clone() Source {
	if s.Metadata != nil {
		md := make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return s
}

// CloneSources deep-copies a slice of sources.
func CloneSources(in []Source) []Source {
	if in == nil {
		return nil
	}
	out := make([]Source, len(in))
	for i, src := range in {
		out[i] = src.Clone()
	}
	return out
}

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// NormalizeURL canonicalizes a URL for identity comparison: lowercase scheme
// and host, no fragment, no default port, no trailing slash, no tracking
// parameters and a sorted query string. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(trimmed, "/")
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")

	query := parsed.Query()
	keys := make([]string, 0, len(query))
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			continue
		}
		if _, ok := trackingParams[lower]; ok {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	for i, key := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		values := query[key]
		sort.Strings(values)
		for j, v := range values {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// HostKey returns the lowercase hostname without a leading "www.".
func HostKey(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
