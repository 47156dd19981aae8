package domain

import "strings"

// Credentials maps a search provider name to its API key.
type Credentials map[string]string

// Key returns the trimmed key for provider.
func (c Credentials) Key(provider string) string {
	return strings.TrimSpace(c[provider])
}

// Merge returns a copy of c where every non-blank key of override wins.
func (c Credentials) Merge(override Credentials) Credentials {
	out := make(Credentials, len(c)+len(override))
	for name, key := range c {
		out[name] = key
	}
	for name, key := range override {
		if strings.TrimSpace(key) != "" {
			out[name] = key
		}
	}
	return out
}
