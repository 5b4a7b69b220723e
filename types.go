package appauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AuthEvent identifies a push-based auth state transition from the backend.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Subscription is a live auth state change subscription.
type Subscription interface {
	Unsubscribe()
}

// AuthClient is the backend auth collaborator. GetSession restores any
// persisted session; the remaining methods map one-to-one to the managed
// auth API. Implementations push state transitions to OnAuthStateChange
// subscribers.
type AuthClient interface {
	GetSession(ctx context.Context) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpData, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs UserAttributes) error
	OnAuthStateChange(fn func(event AuthEvent, session *Session)) Subscription
}

// SignUpData is the backend's answer to a sign-up request. Session is nil
// when the account still needs email confirmation.
type SignUpData struct {
	User    *User
	Session *Session
}

// UserAttributes carries mutable identity attributes for AuthClient.UpdateUser.
type UserAttributes struct {
	Password string `json:"password,omitempty"`
}

// Profiles is the row store for the profiles table, keyed by user id.
// Insert must fail with a conflict when a row for the id already exists;
// that constraint is what makes the bootstrapper's read-or-create idempotent.
type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Insert(ctx context.Context, profile *Profile) (*Profile, error)
	Update(ctx context.Context, id uuid.UUID, changes ProfileUpdate) (*Profile, error)
}

// Navigator is the navigation collaborator: the current route as ordered
// path segments, a replace primitive that does not grow the back stack, and
// a readiness signal for the navigation container.
type Navigator interface {
	Segments() []string
	Replace(path string)
	Ready() bool
}

// TokenStore persists session tokens across process launches. Mobile hosts
// back this with secure storage; MemoryTokenStore covers tests and demos.
type TokenStore interface {
	Load(ctx context.Context) (*StoredTokens, error)
	Save(ctx context.Context, tokens StoredTokens) error
	Clear(ctx context.Context) error
}

// StoredTokens is the persisted shape of a session.
type StoredTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Config holds backend connection options.
type Config interface {
	GetBaseURL() string
	GetAPIKey() string
	GetResetRedirectURL() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] APPAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] APPAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] APPAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] APPAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
