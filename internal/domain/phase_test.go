package domain

import (
	"errors"
	"testing"
)

func TestPhaseTransitions(t *testing.T) {
	t.Parallel()

	legal := [][2]SearchPhase{
		{PhaseIdle, PhaseSearching},
		{PhaseSearching, PhaseScraping},
		{PhaseSearching, PhaseAnalyzing},
		{PhaseScraping, PhaseAnalyzing},
		{PhaseAnalyzing, PhaseComplete},
		{PhaseScraping, PhaseCancelled},
		{PhaseIdle, PhaseError},
	}
	for _, tr := range legal {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be legal", tr[0], tr[1])
		}
	}

	illegal := [][2]SearchPhase{
		{PhaseIdle, PhaseAnalyzing},
		{PhaseAnalyzing, PhaseScraping},
		{PhaseComplete, PhaseSearching},
		{PhaseError, PhaseComplete},
		{PhaseCancelled, PhaseError},
	}
	for _, tr := range illegal {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestProviderErrorKind(t *testing.T) {
	t.Parallel()

	err := &ProviderError{Provider: "tavily", Kind: ProviderRateLimited, Status: 429}
	wrapped := errors.Join(errors.New("search"), err)
	if ProviderErrorKindOf(wrapped) != ProviderRateLimited {
		t.Fatalf("kind not found through wrapping")
	}
	if ProviderErrorKindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no provider kind")
	}
	if err.Transient() {
		t.Fatalf("rate limiting is not a transient network failure")
	}
}

func TestCredentialsMerge(t *testing.T) {
	t.Parallel()

	base := Credentials{"tavily": "configured", "exa": "exa-key"}
	merged := base.Merge(Credentials{"tavily": " request ", "exa": "  "})

	if merged.Key("tavily") != "request" {
		t.Fatalf("request key should win, got %q", merged.Key("tavily"))
	}
	if merged.Key("exa") != "exa-key" {
		t.Fatalf("blank override must not clear a key")
	}
	if base["tavily"] != "configured" {
		t.Fatalf("Merge mutated the receiver")
	}
	if (Credentials)(nil).Key("brave") != "" {
		t.Fatalf("nil credentials should yield empty keys")
	}
}

func TestConversationTurns(t *testing.T) {
	t.Parallel()

	conv := Conversation{Messages: []Message{
		{Role: RoleAssistant, Content: "orphan"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "unanswered"},
	}}
	turns := conv.Turns()
	if len(turns) != 1 || turns[0] != (Turn{Query: "q1", Response: "a1"}) {
		t.Fatalf("unexpected turns %+v", turns)
	}
}
