package domain

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"https://Example.COM/Amber/", "https://example.com/Amber"},
		{"https://example.com:443/a#section", "https://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"https://example.com/a?utm_source=x&b=2&a=1&fbclid=z", "https://example.com/a?a=1&b=2"},
		{"  not a url/ ", "not a url"},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHostKeyDropsWWW(t *testing.T) {
	t.Parallel()

	if got := HostKey("https://WWW.Example.com/amber"); got != "example.com" {
		t.Fatalf("unexpected host key %q", got)
	}
}

func TestGroundingSourcesKeepsScrapedInOrder(t *testing.T) {
	t.Parallel()

	in := []Source{
		{URL: "https://a.example/1", Scraped: true, Metadata: map[string]string{"k": "v"}},
		{URL: "https://b.example/2", Scraped: false, Error: "timeout"},
		{URL: "https://a.example/1/", Scraped: true},
		{URL: "https://c.example/3", Scraped: true},
	}
	got := GroundingSources(in)
	if len(got) != 2 || got[0].URL != "https://a.example/1" || got[1].URL != "https://c.example/3" {
		t.Fatalf("unexpected grounding sources: %+v", got)
	}

	got[0].Metadata["k"] = "changed"
	if in[0].Metadata["k"] != "v" {
		t.Fatalf("grounding sources share metadata with input")
	}
}

func TestSourceHasContent(t *testing.T) {
	t.Parallel()

	if (Source{Markdown: "  "}).HasContent() {
		t.Fatalf("blank markdown reported as content")
	}
	if !(Source{ExtractedText: "text"}).HasContent() {
		t.Fatalf("extracted text not reported as content")
	}
}
