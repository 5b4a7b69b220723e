package appauth_test

import (
	"errors"
	"testing"

	appauth "github.com/afrimed/go-appauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListenerSignedIn(t *testing.T) {
	client := &MockAuthClient{}
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")
	session := newTestSession(user)

	profiles.On("GetByID", mock.Anything, user.ID).
		Return(&appauth.Profile{ID: user.ID, FullName: "Ada"}, nil)

	manager := appauth.New(client, profiles)
	stop := manager.Listen()
	defer stop()

	client.Emit(appauth.EventSignedIn, session)

	state := manager.State()
	assert.True(t, state.IsAuthenticated())
	require.NotNil(t, state.Profile)
	assert.Equal(t, "Ada", state.Profile.FullName)
	assert.Equal(t, appauth.PhaseReady, state.Phase)
}

func TestListenerSignedOut(t *testing.T) {
	client := &MockAuthClient{}
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	profiles.On("GetByID", mock.Anything, user.ID).
		Return(&appauth.Profile{ID: user.ID}, nil)

	manager := appauth.New(client, profiles)
	stop := manager.Listen()
	defer stop()

	client.Emit(appauth.EventSignedIn, newTestSession(user))
	require.True(t, manager.IsAuthenticated())

	// A lingering error from an earlier operation clears on sign-out.
	manager.Store().SetAuthError(appauth.TranslateAuthError(errors.New("boom"), ""))

	client.Emit(appauth.EventSignedOut, nil)

	state := manager.State()
	assert.False(t, state.IsAuthenticated())
	assert.Nil(t, state.Session)
	assert.Nil(t, state.Profile)
	assert.Nil(t, state.AuthError)
	assert.Equal(t, appauth.PhaseUnauthenticated, state.Phase)
}

func TestListenerTokenRefreshKeepsProfile(t *testing.T) {
	client := &MockAuthClient{}
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	profiles.On("GetByID", mock.Anything, user.ID).
		Return(&appauth.Profile{ID: user.ID, FullName: "Ada"}, nil)

	manager := appauth.New(client, profiles)
	stop := manager.Listen()
	defer stop()

	client.Emit(appauth.EventSignedIn, newTestSession(user))

	refreshed := newTestSession(user)
	client.Emit(appauth.EventTokenRefreshed, refreshed)

	state := manager.State()
	assert.Equal(t, refreshed.AccessToken, state.Session.AccessToken)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "Ada", state.Profile.FullName)
}

func TestListenerExternalExpiry(t *testing.T) {
	client := &MockAuthClient{}
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	profiles.On("GetByID", mock.Anything, user.ID).
		Return(&appauth.Profile{ID: user.ID}, nil)

	manager := appauth.New(client, profiles)
	stop := manager.Listen()
	defer stop()

	client.Emit(appauth.EventSignedIn, newTestSession(user))
	require.True(t, manager.IsAuthenticated())

	// Token expiry arrives as a refresh event with no session attached.
	client.Emit(appauth.EventTokenRefreshed, nil)

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.State().Profile)
}

func TestListenerStopDetaches(t *testing.T) {
	client := &MockAuthClient{}
	manager := appauth.New(client, &MockProfiles{})

	stop := manager.Listen()
	require.Equal(t, 1, client.HandlerCount())

	stop()
	assert.Equal(t, 0, client.HandlerCount())

	user := newTestUser("ada@example.com")
	client.Emit(appauth.EventSignedIn, newTestSession(user))
	assert.False(t, manager.IsAuthenticated())
}
