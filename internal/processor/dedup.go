package processor

import (
	"strings"

	"WebResearcher/internal/domain"
)

// Select drops sources without a usable URL, repeats of the same normalized
// URL, and every source beyond perHostCap for its host. Relevance order is
// preserved. A perHostCap below one disables the host cap.
func Select(sources []domain.Source, perHostCap int) []domain.Source {
	seen := make(map[string]struct{}, len(sources))
	perHost := make(map[string]int, len(sources))
	out := make([]domain.Source, 0, len(sources))

	for _, src := range sources {
		src.URL = strings.TrimSpace(src.URL)
		host := src.Host()
		if src.URL == "" || host == "" {
			continue
		}
		key := src.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		if perHostCap > 0 && perHost[host] >= perHostCap {
			continue
		}
		seen[key] = struct{}{}
		perHost[host]++
		out = append(out, src.Clone())
	}
	return out
}
