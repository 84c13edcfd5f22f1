package service

import (
	"sync"

	"shuttlepay/internal/domain"
)

// ReferenceLedger tracks the client-side lifecycle of payment references.
// One entry per reference keeps concurrent unrelated attempts independent:
// an in-flight mark suppresses duplicate submissions, a terminal mark makes
// any re-submission a local no-op. Both payment flows share one ledger.
type ReferenceLedger struct {
	mu     sync.Mutex
	states map[string]domain.AttemptStatus
}

// NewReferenceLedger creates an empty ledger.
func NewReferenceLedger() *ReferenceLedger {
	return &ReferenceLedger{
		states: make(map[string]domain.AttemptStatus),
	}
}

// Begin marks the reference as in-flight. It fails if a submission is
// already outstanding or the reference has reached a terminal state.
func (l *ReferenceLedger) Begin(reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[reference]
	if ok {
		if state.Terminal() {
			return ErrReferenceFinalized
		}
		return ErrAttemptInFlight
	}

	l.states[reference] = domain.AttemptStatusSubmitted
	return nil
}

// Finish records the terminal outcome for an in-flight reference. Terminal
// entries are never removed; a reference pays at most once per process.
func (l *ReferenceLedger) Finish(reference string, status domain.AttemptStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[reference] = status
}

// Release drops an in-flight mark for an attempt that never reached
// submission. A failed precondition is not terminal; the user may retry
// the same reference with a fresh explicit action.
func (l *ReferenceLedger) Release(reference string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok := l.states[reference]; ok && !state.Terminal() {
		delete(l.states, reference)
	}
}

// Status reports the recorded state for a reference.
func (l *ReferenceLedger) Status(reference string) (domain.AttemptStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.states[reference]
	return state, ok
}

// ClearFailed removes a terminal FAILED entry so an explicit user retry can
// verify the reference again. Verified and in-flight entries are untouchable.
func (l *ReferenceLedger) ClearFailed(reference string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.states[reference] == domain.AttemptStatusFailed {
		delete(l.states, reference)
		return true
	}
	return false
}
