package domain

import "fmt"

// SearchPhase is the orchestrator state.
type SearchPhase string

const (
	PhaseIdle      SearchPhase = "idle"
	PhaseSearching SearchPhase = "searching"
	PhaseScraping  SearchPhase = "scraping"
	PhaseAnalyzing SearchPhase = "analyzing"
	PhaseComplete  SearchPhase = "complete"
	PhaseError     SearchPhase = "error"
	PhaseCancelled SearchPhase = "cancelled"
)

var phaseTransitions = map[SearchPhase][]SearchPhase{
	PhaseIdle:      {PhaseSearching, PhaseError, PhaseCancelled},
	PhaseSearching: {PhaseScraping, PhaseAnalyzing, PhaseError, PhaseCancelled},
	PhaseScraping:  {PhaseAnalyzing, PhaseError, PhaseCancelled},
	PhaseAnalyzing: {PhaseComplete, PhaseError, PhaseCancelled},
}

// Terminal reports whether no further transitions are allowed.
func (p SearchPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseCancelled
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to SearchPhase) bool {
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PhaseTransitionError is returned for an illegal move.
type PhaseTransitionError struct {
	From SearchPhase
	To   SearchPhase
}

func (e *PhaseTransitionError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.From, e.To)
}
