package domain

import "testing"

func TestNewQueryBoundsContext(t *testing.T) {
	t.Parallel()

	turns := []Turn{
		{Query: "one", Response: "first"},
		{Query: "  ", Response: ""},
		{Query: "three", Response: "a long response"},
	}
	q := NewQuery("  follow up  ", turns, ContextLimits{MaxTurns: 2, MaxTurnRunes: 6})

	if q.Text() != "follow up" {
		t.Fatalf("query text not trimmed: %q", q.Text())
	}
	ctx := q.Context()
	if len(ctx) != 1 {
		t.Fatalf("expected blank turn dropped and oldest cut, got %+v", ctx)
	}
	if ctx[0].Query != "three" || ctx[0].Response != "a long..." {
		t.Fatalf("unexpected turn %+v", ctx[0])
	}

	ctx[0].Query = "mutated"
	if q.Context()[0].Query != "three" {
		t.Fatalf("Context exposes internal state")
	}
}

func TestNewQueryDefaultLimits(t *testing.T) {
	t.Parallel()

	turns := make([]Turn, DefaultMaxContextTurns+3)
	for i := range turns {
		turns[i] = Turn{Query: "q", Response: "r"}
	}
	if got := len(NewQuery("x", turns, ContextLimits{}).Context()); got != DefaultMaxContextTurns {
		t.Fatalf("expected %d turns, got %d", DefaultMaxContextTurns, got)
	}
}
