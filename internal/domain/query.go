package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxTurnRunes bounds each side of a context pair.
	DefaultMaxTurnRunes = 2000
	// DefaultMaxContextTurns bounds how many prior pairs are kept.
	DefaultMaxContextTurns = 6
)

// Turn is one prior exchange of the conversation.
type Turn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Query is the immutable research input.
type Query struct {
	text    string
	context []Turn
}

// ContextLimits caps conversational context growth.
type ContextLimits struct {
	MaxTurns     int
	MaxTurnRunes int
}

// NewQuery builds a Query, keeping only the most recent turns and truncating
// each side of a turn to the configured size.
func NewQuery(text string, turns []Turn, limits ContextLimits) Query {
	if limits.MaxTurns <= 0 {
		limits.MaxTurns = DefaultMaxContextTurns
	}
	if limits.MaxTurnRunes <= 0 {
		limits.MaxTurnRunes = DefaultMaxTurnRunes
	}

	if len(turns) > limits.MaxTurns {
		turns = turns[len(turns)-limits.MaxTurns:]
	}

	bounded := make([]Turn, 0, len(turns))
	for _, t := range turns {
		q := truncateRunes(strings.TrimSpace(t.Query), limits.MaxTurnRunes)
		r := truncateRunes(strings.TrimSpace(t.Response), limits.MaxTurnRunes)
		if q == "" && r == "" {
			continue
		}
		bounded = append(bounded, Turn{Query: q, Response: r})
	}

	return Query{text: strings.TrimSpace(text), context: bounded}
}

// Text returns the query string.
func (q Query) Text() string { return q.text }

// Context returns a copy of the bounded conversational context.
func (q Query) Context() []Turn {
	out := make([]Turn, len(q.context))
	copy(out, q.context)
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
