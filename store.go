package appauth

import (
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// State is a point-in-time snapshot of the auth state. Model pointers are
// shared and must be treated as read-only by consumers.
type State struct {
	Session     *Session
	User        *User
	Profile     *Profile
	Loading     bool
	Initialized bool
	AuthError   *goerrors.Error
	Phase       Phase
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// IsAdmin reports whether the loaded profile has admin rights.
func (s State) IsAdmin() bool {
	return s.Profile != nil && s.Profile.IsAdmin
}

// Store is the single owned container of auth state. It is handed to the
// Manager, the ProfileBootstrapper, and the Guard by its owner; there is no
// package-level instance. All mutation goes through the entry points below,
// each of which notifies subscribers with a fresh snapshot.
//
// Session and profile writes carry a monotonic ticket issued before the
// async work starts. Two paths can populate the profile for the same user
// near-simultaneously (the explicit post-sign-in refresh and the push
// listener); the ticket lets the store discard whichever completion is
// stale instead of letting the later-resolving call win.
type Store struct {
	mu sync.Mutex

	session     *Session
	user        *User
	profile     *Profile
	pending     int
	initialized bool
	authError   *goerrors.Error
	phase       Phase

	ticket        uint64
	sessionTicket uint64
	profileTicket uint64

	nextSubID   int
	subscribers map[int]func(State)

	logger Logger
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithStoreLogger overrides the store logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore returns an empty, unauthenticated store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		phase:       PhaseUnauthenticated,
		subscribers: map[int]func(State){},
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	return State{
		Session:     s.session,
		User:        s.user,
		Profile:     s.profile,
		Loading:     s.pending > 0,
		Initialized: s.initialized,
		AuthError:   s.authError,
		Phase:       s.phase,
	}
}

// Session returns the current session, nil when signed out.
func (s *Store) Session() *Session { return s.State().Session }

// User returns the current user, nil when signed out.
func (s *Store) User() *User { return s.State().User }

// Profile returns the loaded profile, nil until the bootstrapper settles.
func (s *Store) Profile() *Profile { return s.State().Profile }

// Loading reports whether an auth-affecting async operation is outstanding.
func (s *Store) Loading() bool { return s.State().Loading }

// Initialized reports whether the one-shot boot query has settled. It flips
// false to true exactly once per store lifetime and never reverts.
func (s *Store) Initialized() bool { return s.State().Initialized }

// AuthError returns the lingering auth error, nil when clear.
func (s *Store) AuthError() *goerrors.Error { return s.State().AuthError }

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase { return s.State().Phase }

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool { return s.State().IsAuthenticated() }

// IsAdmin reports whether the loaded profile has admin rights.
func (s *Store) IsAdmin() bool { return s.State().IsAdmin() }

// Subscribe registers fn to run after every state change with the new
// snapshot, and returns its disposer. Callbacks run outside the store lock.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Ticket reserves a monotonic write ticket. Callers take the ticket before
// starting async work and pass it to SetAuth/ClearAuth/SetProfile on
// completion.
func (s *Store) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	return s.ticket
}

// BeginAuthenticating marks a credentialed sign-in/up as in flight.
func (s *Store) BeginAuthenticating() {
	s.mu.Lock()
	s.advancePhase(PhaseAuthenticating)
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// AbortAuthenticating returns the phase to unauthenticated after a failed
// or pending credentialed operation. It is a no-op unless a sign-in/up is
// the phase currently in flight.
func (s *Store) AbortAuthenticating() {
	s.mu.Lock()
	if s.phase != PhaseAuthenticating {
		s.mu.Unlock()
		return
	}
	s.advancePhase(PhaseUnauthenticated)
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// SetAuth records a session and its user. Stale tickets are discarded.
// The profile is left untouched; the bootstrapper owns it.
func (s *Store) SetAuth(ticket uint64, session *Session, user *User) bool {
	s.mu.Lock()
	if ticket <= s.sessionTicket {
		s.logger.Debug("discarding stale session write", "ticket", ticket, "applied", s.sessionTicket)
		s.mu.Unlock()
		return false
	}
	s.sessionTicket = ticket
	s.session = session
	s.user = user
	if session != nil && user != nil {
		s.advancePhase(PhaseProfileLoading)
	} else {
		s.advancePhase(PhaseUnauthenticated)
	}
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
	return true
}

// ClearAuth transitions session, user, and profile to nil. The listener is
// the sole caller for push-driven sign-outs; tickets keep a slow restore
// from resurrecting the cleared session.
func (s *Store) ClearAuth(ticket uint64) bool {
	s.mu.Lock()
	if ticket <= s.sessionTicket {
		s.logger.Debug("discarding stale session clear", "ticket", ticket, "applied", s.sessionTicket)
		s.mu.Unlock()
		return false
	}
	s.sessionTicket = ticket
	if s.profileTicket < ticket {
		s.profileTicket = ticket
		s.profile = nil
	}
	s.session = nil
	s.user = nil
	s.advancePhase(PhaseUnauthenticated)
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
	return true
}

// SetProfile records the profile for the current user. Stale tickets are
// discarded; a nil profile marks a degraded fetch.
func (s *Store) SetProfile(ticket uint64, profile *Profile) bool {
	s.mu.Lock()
	if ticket <= s.profileTicket {
		s.logger.Debug("discarding stale profile write", "ticket", ticket, "applied", s.profileTicket)
		s.mu.Unlock()
		return false
	}
	s.profileTicket = ticket
	s.profile = profile
	if s.session != nil && s.user != nil && profile != nil {
		s.advancePhase(PhaseReady)
	}
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
	return true
}

// ClearProfile drops the local profile copy, keeping the session. Used by
// sign-out, where session/user clearing belongs to the listener.
func (s *Store) ClearProfile() {
	s.mu.Lock()
	s.profileTicket = s.ticket
	s.profile = nil
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// SetAuthError records an error for passive display.
func (s *Store) SetAuthError(err *goerrors.Error) {
	s.mu.Lock()
	s.authError = err
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// ClearAuthError clears any lingering auth error.
func (s *Store) ClearAuthError() {
	s.mu.Lock()
	s.authError = nil
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// BeginOp marks an auth-affecting async operation as outstanding.
func (s *Store) BeginOp() {
	s.mu.Lock()
	s.pending++
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// EndOp settles an operation started with BeginOp.
func (s *Store) EndOp() {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

// MarkInitialized flips initialized to true. Later calls are no-ops; the
// flag never reverts.
func (s *Store) MarkInitialized() {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	subs, state := s.pendingNotify()
	s.mu.Unlock()
	dispatch(subs, state)
}

func (s *Store) pendingNotify() ([]func(State), State) {
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs, s.snapshot()
}

func dispatch(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state)
	}
}
