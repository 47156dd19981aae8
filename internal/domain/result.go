package domain

// FinalResult is the terminal success payload of a research run.
type FinalResult struct {
	Content           string   `json:"content"`
	Sources           []Source `json:"sources"`
	FollowUpQuestions []string `json:"followUpQuestions"`
	Partial           bool     `json:"partial,omitempty"`
}

// GroundingSources returns the de-duplicated, order-preserving list of sources
// that were scraped successfully.
func GroundingSources(sources []Source) []Source {
	seen := make(map[string]struct{}, len(sources))
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if !src.Scraped {
			continue
		}
		key := src.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, src.Clone())
	}
	return out
}
