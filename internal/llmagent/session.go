package llmagent

import "sync"

// ScopeKey identifies a session-state container by (server, session, dump),
// per spec.md §3. Any field may be empty when the corresponding context is
// not applicable to the current scope.
type ScopeKey struct {
	ServerURL string
	SessionID string
	DumpID    string
}

// SessionState is the per-scope container described in spec.md §3: the
// evidence ledger plus the last-known report identity and checkpoint.
// Per spec.md §9, SessionState owns the ledger; the ledger never holds a
// back-pointer to its owning SessionState.
type SessionState struct {
	Scope                ScopeKey
	Ledger               *Ledger
	LastReportDumpID     string
	LastReportGeneratedAt string
	LastCheckpointJSON   string
	ApprovalGate         *ApprovalGate
	LoopBreakCount       int
}

// NewSessionState constructs an empty session state for scope.
func NewSessionState(scope ScopeKey, decider ApprovalDecider) *SessionState {
	return &SessionState{
		Scope:        scope,
		Ledger:       NewLedger(),
		ApprovalGate: NewApprovalGate(decider),
	}
}

// SessionStore is the process-wide, concurrent map of SessionState keyed by
// ScopeKey (spec.md §5): entries are created lazily and removed by explicit
// reset, never evicted automatically.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[ScopeKey]*SessionState
	decider  ApprovalDecider
}

// NewSessionStore constructs an empty store. decider is used to build the
// ApprovalGate for every lazily-created SessionState.
func NewSessionStore(decider ApprovalDecider) *SessionStore {
	return &SessionStore{
		sessions: make(map[ScopeKey]*SessionState),
		decider:  decider,
	}
}

// GetOrCreate returns the SessionState for scope, creating it lazily on
// first access (spec.md §3 "Ownership/lifecycle").
func (s *SessionStore) GetOrCreate(scope ScopeKey) *SessionState {
	s.mu.RLock()
	state, ok := s.sessions[scope]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sessions[scope]; ok {
		return state
	}
	state = NewSessionState(scope, s.decider)
	s.sessions[scope] = state
	return state
}

// Reset destroys the SessionState for scope, if any, per the explicit
// `reset` lifecycle operation.
func (s *SessionStore) Reset(scope ScopeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, scope)
}

// Len reports how many scopes currently have live session state.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
