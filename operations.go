package appauth

import (
	"context"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
)

// DefaultResetRedirectURL is the deep link the password reset email points
// back into the app.
var DefaultResetRedirectURL = "afrimed://reset-password"

// Manager is the facade consumed by the UI layer: the auth operations plus
// the read surface of its Store. Construct one per app (or per test) with
// New; nothing in this package is process-global.
type Manager struct {
	store            *Store
	client           AuthClient
	profiles         Profiles
	bootstrap        *ProfileBootstrapper
	resetRedirectURL string
	logger           Logger
	initOnce         sync.Once
}

// Option customizes manager construction.
type Option func(*Manager)

// WithLogger overrides the manager logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithResetRedirectURL overrides the password reset deep link.
func WithResetRedirectURL(url string) Option {
	return func(m *Manager) {
		if url != "" {
			m.resetRedirectURL = url
		}
	}
}

// New wires a Manager around the backend auth client and the profiles row
// store.
func New(client AuthClient, profiles Profiles, opts ...Option) *Manager {
	m := &Manager{
		client:           client,
		profiles:         profiles,
		resetRedirectURL: DefaultResetRedirectURL,
		logger:           defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.store = NewStore(WithStoreLogger(m.logger))
	m.bootstrap = NewProfileBootstrapper(m.store, profiles).WithLogger(m.logger)

	return m
}

// Store exposes the state container for subscription and reads.
func (m *Manager) Store() *Store { return m.store }

// State returns a snapshot of the current auth state.
func (m *Manager) State() State { return m.store.State() }

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool { return m.store.IsAuthenticated() }

// IsAdmin reports whether the loaded profile has admin rights.
func (m *Manager) IsAdmin() bool { return m.store.IsAdmin() }

// ClearAuthError clears any lingering auth error.
func (m *Manager) ClearAuthError() { m.store.ClearAuthError() }

// Initialize performs the one-shot query for a persisted session. On
// success it populates session/user and bootstraps the profile; on failure
// it records the error but still completes, so the guard fails open to the
// unauthenticated screens. Initialized becomes true and loading false when
// it settles, on every path. Repeat calls are no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	var result error

	m.initOnce.Do(func() {
		m.store.BeginOp()
		defer func() {
			m.store.MarkInitialized()
			m.store.EndOp()
		}()

		session, err := m.client.GetSession(ctx)
		if err != nil {
			translated := TranslateAuthError(err, "Failed to initialize authentication")
			m.logger.Error("session restore failed", "error", err)
			m.store.SetAuthError(translated)
			result = translated
			return
		}

		if session == nil || session.User == nil {
			return
		}

		ticket := m.store.Ticket()
		m.store.SetAuth(ticket, session, session.User)

		if err := m.bootstrap.Fetch(ctx, session.User.ID); err != nil {
			result = err
		}
	})

	return result
}

// SignUpPayload carries the registration form.
type SignUpPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Country  string `json:"country"`
}

// Validate runs the local validation rules.
func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Country, validation.Length(0, 100)),
	)
}

// SignUpResult reports a settled sign-up. ProfileCreationFailed flags the
// best-effort profile insert: the account exists either way, and the row is
// backfilled on the next profile fetch, but callers may want to retry.
type SignUpResult struct {
	Success               bool
	ProfileCreationFailed bool
}

// SignUp validates locally, registers the account with the backend, and
// inserts the profile row best-effort.
func (m *Manager) SignUp(ctx context.Context, payload SignUpPayload) (SignUpResult, error) {
	m.store.ClearAuthError()

	if err := payload.Validate(); err != nil {
		translated := TranslateValidationError(err)
		m.store.SetAuthError(translated)
		return SignUpResult{}, translated
	}

	m.store.BeginOp()
	defer m.store.EndOp()
	m.store.BeginAuthenticating()

	metadata := map[string]any{
		"full_name": payload.FullName,
		"country":   payload.Country,
	}
	m.logger.Debug("sign up metadata: %s", print.MaybePrettyJSON(metadata))

	data, err := m.client.SignUp(ctx, payload.Email, payload.Password, metadata)
	if err != nil {
		translated := TranslateAuthError(err, "Registration failed. Please try again.")
		m.store.AbortAuthenticating()
		m.store.SetAuthError(translated)
		return SignUpResult{}, translated
	}

	if data == nil || data.User == nil {
		translated := goerrors.New("Registration failed - no user data returned", goerrors.CategoryAuth).
			WithTextCode(TextCodeAuthUnknown)
		m.store.AbortAuthenticating()
		m.store.SetAuthError(translated)
		return SignUpResult{}, translated
	}

	if data.Session == nil {
		// Email confirmation pending; the listener drives the transition
		// once the backend reports a session.
		m.store.AbortAuthenticating()
	}

	result := SignUpResult{Success: true}

	profile := &Profile{
		ID:       data.User.ID,
		Email:    payload.Email,
		FullName: payload.FullName,
		Country:  payload.Country,
		IsActive: true,
	}

	if _, err := m.profiles.Insert(ctx, profile); err != nil && !IsConflictError(err) {
		// The account exists regardless; the row is backfilled on the next
		// fetch. Surface the failure without failing the sign-up.
		m.logger.Warn("best-effort profile insert failed", "user_id", data.User.ID, "error", err)
		result.ProfileCreationFailed = true
	}

	return result, nil
}

// SignInPayload carries the login form.
type SignInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs the local validation rules.
func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// SignIn authenticates with the backend, then explicitly re-queries the
// session and profile rather than relying on the push listener alone, so
// the awaiting caller sees a populated profile within one settle cycle.
func (m *Manager) SignIn(ctx context.Context, payload SignInPayload) error {
	m.store.ClearAuthError()

	if err := payload.Validate(); err != nil {
		translated := TranslateValidationError(err)
		m.store.SetAuthError(translated)
		return translated
	}

	m.store.BeginOp()
	defer m.store.EndOp()
	m.store.BeginAuthenticating()

	session, err := m.client.SignInWithPassword(ctx, payload.Email, payload.Password)
	if err != nil {
		translated := TranslateAuthError(err, "Login failed. Please check your credentials.")
		m.store.AbortAuthenticating()
		m.store.SetAuthError(translated)
		return translated
	}

	// Re-read the current session so we reflect whatever the backend
	// settled on, including a refresh that raced the login.
	if current, err := m.client.GetSession(ctx); err == nil && current != nil {
		session = current
	}

	if session == nil || session.User == nil {
		translated := goerrors.New("Login failed. Please check your credentials.", goerrors.CategoryAuth).
			WithTextCode(TextCodeAuthUnknown)
		m.store.AbortAuthenticating()
		m.store.SetAuthError(translated)
		return translated
	}

	ticket := m.store.Ticket()
	m.store.SetAuth(ticket, session, session.User)

	if err := m.bootstrap.Fetch(ctx, session.User.ID); err != nil {
		// Signed in with a degraded profile; the error is already recorded.
		m.logger.Warn("post sign-in profile fetch failed", "error", err)
	}

	return nil
}

// SignOut delegates to the backend and clears the local profile
// immediately. Session and user clearing is the listener's job, reacting to
// the resulting SIGNED_OUT event, so there is a single writer for that
// transition.
func (m *Manager) SignOut(ctx context.Context) error {
	m.store.ClearAuthError()

	if err := m.client.SignOut(ctx); err != nil {
		translated := TranslateAuthError(err, "Failed to sign out")
		m.store.SetAuthError(translated)
		return translated
	}

	m.store.ClearProfile()
	return nil
}

// ResetPasswordPayload carries the password recovery form.
type ResetPasswordPayload struct {
	Email string `json:"email"`
}

// Validate runs the local validation rules.
func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// ResetPassword sends the recovery email with the app's reset deep link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	m.store.ClearAuthError()

	payload := ResetPasswordPayload{Email: email}
	if err := payload.Validate(); err != nil {
		translated := TranslateValidationError(err)
		m.store.SetAuthError(translated)
		return translated
	}

	if err := m.client.ResetPasswordForEmail(ctx, email, m.resetRedirectURL); err != nil {
		translated := TranslateAuthError(err, "Failed to send reset email. Please try again.")
		m.store.SetAuthError(translated)
		return translated
	}

	return nil
}

// UpdatePasswordPayload carries the new password.
type UpdatePasswordPayload struct {
	Password string `json:"password"`
}

// Validate runs the local validation rules.
func (p UpdatePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
	)
}

// UpdatePassword sets a new password on the identity record.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	m.store.ClearAuthError()

	payload := UpdatePasswordPayload{Password: newPassword}
	if err := payload.Validate(); err != nil {
		translated := TranslateValidationError(err)
		m.store.SetAuthError(translated)
		return translated
	}

	if err := m.client.UpdateUser(ctx, UserAttributes{Password: newPassword}); err != nil {
		translated := TranslateAuthError(err, "Failed to update password")
		m.store.SetAuthError(translated)
		return translated
	}

	return nil
}

// Validate checks the partial update. Phone numbers must parse as valid
// E.164 input when present.
func (c ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FullName, validation.By(optionalNonEmpty)),
		validation.Field(&c.Phone, validation.By(optionalPhone)),
	)
}

func optionalNonEmpty(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	return validation.Validate(*s, validation.Required, validation.Length(1, 200))
}

func optionalPhone(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil || *s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(*s, "ZZ")
	if err != nil {
		return err
	}
	if !phonenumbers.IsValidNumber(num) {
		return validation.NewError("validation_phone", "must be a valid phone number")
	}
	return nil
}

// UpdateProfile persists the partial update for the signed-in user, then
// refreshes the local copy so it matches the stored row.
func (m *Manager) UpdateProfile(ctx context.Context, changes ProfileUpdate) error {
	user := m.store.User()
	if user == nil {
		m.store.SetAuthError(ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	if err := changes.Validate(); err != nil {
		translated := TranslateValidationError(err)
		m.store.SetAuthError(translated)
		return translated
	}

	m.logger.Debug("profile update %s: %s", user.ID, print.MaybePrettyJSON(changes))

	if _, err := m.profiles.Update(ctx, user.ID, changes); err != nil {
		translated := TranslateProfileError(err)
		m.store.SetAuthError(translated)
		return translated
	}

	return m.bootstrap.Fetch(ctx, user.ID)
}

// RefreshProfile re-runs the profile fetch for the signed-in user. It is a
// no-op when signed out, and the retry path after a degraded fetch.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	user := m.store.User()
	if user == nil {
		return nil
	}
	return m.bootstrap.Fetch(ctx, user.ID)
}
