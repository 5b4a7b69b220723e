package appauth

// Phase is the coarse auth lifecycle phase derived from the session and
// profile fields. An auth error overlays any phase without being terminal;
// the next successful operation clears it.
type Phase string

const (
	// PhaseUnauthenticated means no session is present.
	PhaseUnauthenticated Phase = "unauthenticated"
	// PhaseAuthenticating means a sign-in or sign-up is in flight.
	PhaseAuthenticating Phase = "authenticating"
	// PhaseProfileLoading means a session exists but the profile row is
	// still being fetched or created.
	PhaseProfileLoading Phase = "profile_loading"
	// PhaseReady means session and profile are both populated.
	PhaseReady Phase = "ready"
)

// phaseTransitions is the allowed phase graph. A restored session skips
// PhaseAuthenticating and goes straight to loading the profile.
var phaseTransitions = map[Phase]map[Phase]struct{}{
	PhaseUnauthenticated: {
		PhaseAuthenticating: {},
		PhaseProfileLoading: {},
	},
	PhaseAuthenticating: {
		PhaseProfileLoading: {},
		PhaseUnauthenticated: {},
	},
	PhaseProfileLoading: {
		PhaseReady:           {},
		PhaseUnauthenticated: {},
	},
	PhaseReady: {
		PhaseProfileLoading: {},
		PhaseUnauthenticated: {},
	},
}

// CanTransition reports whether the phase graph allows from -> to.
// Self transitions are no-ops and always allowed.
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	allowed, ok := phaseTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// advancePhase moves the store to the target phase. The graph is
// observational rather than blocking: an unexpected edge is logged and
// applied anyway, since the backend is the source of truth for session
// transitions and the store must follow it.
func (s *Store) advancePhase(to Phase) {
	if s.phase == to {
		return
	}
	if !CanTransition(s.phase, to) {
		s.logger.Warn("unexpected auth phase transition", "from", s.phase, "to", to)
	}
	s.phase = to
}
