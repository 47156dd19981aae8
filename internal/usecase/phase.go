package usecase

import (
	"sync"

	"WebResearcher/internal/domain"
)

// phaseMachine holds the run phase and rejects illegal moves.
type phaseMachine struct {
	mu      sync.RWMutex
	current domain.SearchPhase
}

func newPhaseMachine() *phaseMachine {
	return &phaseMachine{current: domain.PhaseIdle}
}

func (m *phaseMachine) get() domain.SearchPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *phaseMachine) advance(to domain.SearchPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !domain.CanTransition(m.current, to) {
		return &domain.PhaseTransitionError{From: m.current, To: to}
	}
	m.current = to
	return nil
}

// settle moves to a terminal phase unless one was already reached.
func (m *phaseMachine) settle(to domain.SearchPhase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Terminal() {
		return
	}
	if domain.CanTransition(m.current, to) {
		m.current = to
	}
}
