package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"WebResearcher/internal/config"
	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

func testOptions() Options {
	return Options{Client: &http.Client{Timeout: 2 * time.Second}, RetryDelay: time.Millisecond}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	cases := map[int]int{-3: DefaultLimit, 0: DefaultLimit, 1: 1, 20: 20, 75: MaxLimit}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTavilySearchClampsAndScrapes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tvly-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["max_results"] != float64(MaxLimit) {
			t.Errorf("expected clamped max_results, got %v", body["max_results"])
		}
		if body["include_raw_content"] != true {
			t.Errorf("expected include_raw_content")
		}
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Amber Room","url":"https://en.wikipedia.org/wiki/Amber_Room","content":"The Amber Room was a chamber","raw_content":"# Amber Room\nfull text"},
			{"title":"","url":"","content":"skipped"}
		]}`))
	}))
	defer server.Close()

	provider := NewTavily("tvly-key", config.TavilyConfig{BaseURL: server.URL}, testOptions())
	sources, err := provider.Search(context.Background(), ports.SearchRequest{Query: "amber room", Limit: 75, WantScrape: true})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if !sources[0].HasContent() || sources[0].Markdown != "# Amber Room\nfull text" {
		t.Fatalf("expected inline content, got %+v", sources[0])
	}
	if sources[0].Scraped {
		t.Fatalf("provider must not mark sources as scraped")
	}
}

func TestProviderErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   domain.ProviderErrorKind
		hits   int32
	}{
		{http.StatusTooManyRequests, domain.ProviderRateLimited, 1},
		{http.StatusUnauthorized, domain.ProviderInvalidKey, 1},
		{http.StatusForbidden, domain.ProviderInvalidKey, 1},
		{http.StatusBadGateway, domain.ProviderNetwork, 2},
		{http.StatusBadRequest, domain.ProviderUnknown, 1},
	}

	for _, tc := range cases {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "nope", tc.status)
		}))

		provider := NewExa("exa-key", config.ExaConfig{BaseURL: server.URL}, testOptions())
		_, err := provider.Search(context.Background(), ports.SearchRequest{Query: "q", Limit: 5})
		server.Close()

		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: expected ProviderError, got %v", tc.status, err)
		}
		if pe.Kind != tc.kind || pe.Status != tc.status || pe.Provider != ProviderExa {
			t.Fatalf("status %d: unexpected error %+v", tc.status, pe)
		}
		if hits.Load() != tc.hits {
			t.Fatalf("status %d: expected %d attempts, got %d", tc.status, tc.hits, hits.Load())
		}
	}
}

func TestNetworkFailureRetriesOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if got := r.URL.Query().Get("count"); got != "5" {
			t.Errorf("unexpected count %q", got)
		}
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"A","url":"https://a.example/","description":"snippet"}]}}`))
	}))
	defer server.Close()

	provider := NewBrave("brave-key", config.BraveConfig{BaseURL: server.URL}, testOptions())
	sources, err := provider.Search(context.Background(), ports.SearchRequest{Query: "q", Limit: 5})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected one retry, got %d attempts", hits.Load())
	}
	if len(sources) != 1 || sources[0].Description != "snippet" {
		t.Fatalf("unexpected sources: %+v", sources)
	}
}

func TestMissingKeyIsInvalidKey(t *testing.T) {
	t.Parallel()

	provider := NewTavily("  ", config.TavilyConfig{BaseURL: "http://127.0.0.1:1"}, testOptions())
	_, err := provider.Search(context.Background(), ports.SearchRequest{Query: "q"})
	if kind := domain.ProviderErrorKindOf(err); kind != domain.ProviderInvalidKey {
		t.Fatalf("expected invalid-key, got %q (%v)", kind, err)
	}
}

func TestExaRequestsTextWhenScraping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "exa-key" {
			t.Errorf("missing api key header")
		}
		var body struct {
			NumResults int            `json:"numResults"`
			Contents   map[string]any `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.NumResults != 3 || body.Contents["text"] == nil {
			t.Errorf("unexpected payload %+v", body)
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"T","url":"https://t.example/a","text":"page text","favicon":"https://t.example/favicon.ico","author":"Ann"}]}`))
	}))
	defer server.Close()

	provider := NewExa("exa-key", config.ExaConfig{BaseURL: server.URL, TextMaxChars: 500}, testOptions())
	sources, err := provider.Search(context.Background(), ports.SearchRequest{Query: "q", Limit: 3, WantScrape: true})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	got := sources[0]
	if got.ExtractedText != "page text" || got.Favicon != "https://t.example/favicon.ico" || got.Metadata["author"] != "Ann" {
		t.Fatalf("unexpected source: %+v", got)
	}
}

func TestDuckDuckGoParsesLitePage(t *testing.T) {
	t.Parallel()

	page := `<html><body><table>
	<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Famber&rut=abc" class='result-link'>Amber history</a></td></tr>
	<tr><td class='result-snippet'>The <b>Amber</b> Room   story</td></tr>
	<tr><td><a rel="nofollow" href="https://museum.example/room" class='result-link'>Museum</a></td></tr>
	<tr><td class='result-snippet'>Museum page</td></tr>
	<tr><td><a rel="nofollow" href="https://third.example/" class='result-link'>Third</a></td></tr>
	<tr><td class='result-snippet'>Third page</td></tr>
	</table></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("q") != "amber room" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	provider := NewDuckDuckGo(config.DuckDuckGoConfig{BaseURL: server.URL}, testOptions())
	sources, err := provider.Search(context.Background(), ports.SearchRequest{Query: "amber room", Limit: 2})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(sources))
	}
	if sources[0].URL != "https://example.com/amber" || sources[0].Description != "The Amber Room story" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].URL != "https://museum.example/room" {
		t.Fatalf("unexpected second source: %+v", sources[1])
	}
}

func TestRouterChainOrderAndCredentials(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	RegisterDefaults(reg, config.SearchConfig{}, testOptions())

	router := NewRouter(reg, " Exa ", []string{"tavily", "exa", "brave", "duckduckgo", ""}, map[string]string{
		ProviderTavily: "configured",
	}, nil)

	if got := strings.Join(router.Order(), ","); got != "exa,tavily,brave,duckduckgo" {
		t.Fatalf("unexpected order %s", got)
	}

	names := func(chain []ports.SearchProvider) string {
		parts := make([]string, 0, len(chain))
		for _, p := range chain {
			parts = append(parts, p.Name())
		}
		return strings.Join(parts, ",")
	}

	if got := names(router.Chain(nil)); got != "tavily,duckduckgo" {
		t.Fatalf("expected keyless providers skipped, got %s", got)
	}
	if got := names(router.Chain(domain.Credentials{ProviderExa: "request-key", ProviderBrave: " "})); got != "exa,tavily,duckduckgo" {
		t.Fatalf("expected request credentials to enable exa, got %s", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	disabled := false
	RegisterDefaults(reg, config.SearchConfig{DuckDuckGo: config.DuckDuckGoConfig{Enabled: &disabled}}, testOptions())

	if got := strings.Join(reg.Names(), ","); got != "brave,exa,tavily" {
		t.Fatalf("unexpected names %s", got)
	}
	if _, err := reg.Resolve("bing", "key"); err == nil {
		t.Fatalf("expected unregistered provider error")
	}
	if _, err := reg.Resolve(ProviderBrave, ""); err == nil {
		t.Fatalf("expected missing key error")
	}
	p, err := reg.Resolve(ProviderBrave, "k")
	if err != nil || p.Name() != ProviderBrave {
		t.Fatalf("unexpected resolve result %v %v", p, err)
	}
}

func TestProviderOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		primary   string
		fallbacks []string
		want      string
	}{
		{"auto", []string{"Brave", "exa", "brave"}, "brave,exa"},
		{"", nil, strings.Join(DefaultOrder, ",")},
		{" ", []string{" ", "AUTO"}, strings.Join(DefaultOrder, ",")},
		{"duckduckgo", []string{"tavily", "DuckDuckGo"}, "duckduckgo,tavily"},
	}
	for _, tc := range cases {
		if got := strings.Join(providerOrder(tc.primary, tc.fallbacks), ","); got != tc.want {
			t.Fatalf("providerOrder(%q, %v) = %s, want %s", tc.primary, tc.fallbacks, got, tc.want)
		}
	}

	order := providerOrder("", nil)
	order[0] = "changed"
	if DefaultOrder[0] == "changed" {
		t.Fatalf("default order shared with caller")
	}
}

func TestSearchURLKeepsBasePath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://api.tavily.com":       "https://api.tavily.com/search",
		"https://api.tavily.com/":      "https://api.tavily.com/search",
		" https://proxy.local/exa/v1 ": "https://proxy.local/exa/v1/search",
		"":                             "",
	}
	for base, want := range cases {
		if got := searchURL(base, "/search"); got != want {
			t.Fatalf("searchURL(%q) = %q, want %q", base, got, want)
		}
	}
}
