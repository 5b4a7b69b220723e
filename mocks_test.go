package appauth_test

import (
	"context"
	"sync"
	"time"

	appauth "github.com/afrimed/go-appauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAuthClient implements appauth.AuthClient. State change handlers are
// captured so tests can push events through Emit.
type MockAuthClient struct {
	mock.Mock

	mu       sync.Mutex
	handlers map[int]func(appauth.AuthEvent, *appauth.Session)
	nextID   int
}

func (m *MockAuthClient) GetSession(ctx context.Context) (*appauth.Session, error) {
	args := m.Called(ctx)
	var session *appauth.Session
	if v := args.Get(0); v != nil {
		session = v.(*appauth.Session)
	}
	return session, args.Error(1)
}

func (m *MockAuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*appauth.SignUpData, error) {
	args := m.Called(ctx, email, password, metadata)
	var data *appauth.SignUpData
	if v := args.Get(0); v != nil {
		data = v.(*appauth.SignUpData)
	}
	return data, args.Error(1)
}

func (m *MockAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*appauth.Session, error) {
	args := m.Called(ctx, email, password)
	var session *appauth.Session
	if v := args.Get(0); v != nil {
		session = v.(*appauth.Session)
	}
	return session, args.Error(1)
}

func (m *MockAuthClient) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return m.Called(ctx, email, redirectTo).Error(0)
}

func (m *MockAuthClient) UpdateUser(ctx context.Context, attrs appauth.UserAttributes) error {
	return m.Called(ctx, attrs).Error(0)
}

func (m *MockAuthClient) OnAuthStateChange(fn func(event appauth.AuthEvent, session *appauth.Session)) appauth.Subscription {
	m.mu.Lock()
	if m.handlers == nil {
		m.handlers = map[int]func(appauth.AuthEvent, *appauth.Session){}
	}
	id := m.nextID
	m.nextID++
	m.handlers[id] = fn
	m.mu.Unlock()

	return fakeSubscription{unsub: func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}}
}

// Emit pushes an auth event to every live subscriber.
func (m *MockAuthClient) Emit(event appauth.AuthEvent, session *appauth.Session) {
	m.mu.Lock()
	handlers := make([]func(appauth.AuthEvent, *appauth.Session), 0, len(m.handlers))
	for _, fn := range m.handlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(event, session)
	}
}

// HandlerCount reports live subscriptions, so tests can verify disposers.
func (m *MockAuthClient) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

type fakeSubscription struct {
	unsub func()
}

func (s fakeSubscription) Unsubscribe() { s.unsub() }

// MockProfiles implements appauth.Profiles.
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetByID(ctx context.Context, id uuid.UUID) (*appauth.Profile, error) {
	args := m.Called(ctx, id)
	var profile *appauth.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*appauth.Profile)
	}
	return profile, args.Error(1)
}

func (m *MockProfiles) Insert(ctx context.Context, profile *appauth.Profile) (*appauth.Profile, error) {
	args := m.Called(ctx, profile)
	var out *appauth.Profile
	if v := args.Get(0); v != nil {
		out = v.(*appauth.Profile)
	}
	return out, args.Error(1)
}

func (m *MockProfiles) Update(ctx context.Context, id uuid.UUID, changes appauth.ProfileUpdate) (*appauth.Profile, error) {
	args := m.Called(ctx, id, changes)
	var out *appauth.Profile
	if v := args.Get(0); v != nil {
		out = v.(*appauth.Profile)
	}
	return out, args.Error(1)
}

// fakeNavigator implements appauth.Navigator with a mutable route.
type fakeNavigator struct {
	mu       sync.Mutex
	segments []string
	ready    bool
	replaced []string
}

func (n *fakeNavigator) Segments() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.segments...)
}

func (n *fakeNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = append(n.replaced, path)
}

func (n *fakeNavigator) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

func (n *fakeNavigator) Replacements() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

func newTestUser(email string) *appauth.User {
	return &appauth.User{
		ID:    uuid.New(),
		Email: email,
		Metadata: map[string]any{
			"full_name": "Test User",
			"country":   "Kenya",
		},
	}
}

func newTestSession(user *appauth.User) *appauth.Session {
	expires := time.Now().Add(time.Hour)
	return &appauth.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    &expires,
		User:         user,
	}
}
