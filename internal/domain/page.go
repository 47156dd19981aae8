package domain

// Page is the readable content extracted from a fetched document.
type Page struct {
	URL         string
	FinalURL    string
	Title       string
	Description string
	Favicon     string
	Text        string
	Markdown    string
	ContentType string
}
