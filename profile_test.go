package appauth_test

import (
	"context"
	"errors"
	"testing"

	appauth "github.com/afrimed/go-appauth"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBootstrapperFetchExistingRow(t *testing.T) {
	store := appauth.NewStore()
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	require.True(t, store.SetAuth(store.Ticket(), newTestSession(user), user))

	row := &appauth.Profile{ID: user.ID, Email: user.Email, FullName: "Ada"}
	profiles.On("GetByID", mock.Anything, user.ID).Return(row, nil)

	bootstrap := appauth.NewProfileBootstrapper(store, profiles)
	require.NoError(t, bootstrap.Fetch(context.Background(), user.ID))

	assert.Same(t, row, store.Profile())
	assert.Equal(t, appauth.PhaseReady, store.Phase())
	profiles.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestBootstrapperCreatesDefaultOnMiss(t *testing.T) {
	store := appauth.NewStore()
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	require.True(t, store.SetAuth(store.Ticket(), newTestSession(user), user))

	created := &appauth.Profile{ID: user.ID, Email: user.Email, FullName: "Test User", Country: "Kenya"}
	profiles.On("GetByID", mock.Anything, user.ID).Return(nil, repository.NewRecordNotFound()).Once()
	profiles.On("Insert", mock.Anything, mock.MatchedBy(func(p *appauth.Profile) bool {
		return p.ID == user.ID &&
			p.FullName == "Test User" &&
			p.Country == "Kenya" &&
			p.IsActive
	})).Return(created, nil).Once()
	profiles.On("GetByID", mock.Anything, user.ID).Return(created, nil).Once()

	bootstrap := appauth.NewProfileBootstrapper(store, profiles)
	require.NoError(t, bootstrap.Fetch(context.Background(), user.ID))

	assert.Same(t, created, store.Profile())
	profiles.AssertExpectations(t)
}

func TestBootstrapperDefaultsWithoutMetadata(t *testing.T) {
	user := newTestUser("bare@example.com")
	user.Metadata = nil

	profile := appauth.DefaultProfile(user)
	assert.Equal(t, "User", profile.FullName)
	assert.Equal(t, "Unknown", profile.Country)
	assert.Equal(t, user.Email, profile.Email)
	assert.True(t, profile.IsActive)
}

func TestBootstrapperInsertConflictIsSuccess(t *testing.T) {
	store := appauth.NewStore()
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	require.True(t, store.SetAuth(store.Ticket(), newTestSession(user), user))

	winner := &appauth.Profile{ID: user.ID, FullName: "Winner"}
	profiles.On("GetByID", mock.Anything, user.ID).Return(nil, repository.NewRecordNotFound()).Once()
	profiles.On("Insert", mock.Anything, mock.Anything).
		Return(nil, errors.New("UNIQUE constraint failed: profiles.id")).Once()
	profiles.On("GetByID", mock.Anything, user.ID).Return(winner, nil).Once()

	bootstrap := appauth.NewProfileBootstrapper(store, profiles)
	require.NoError(t, bootstrap.Fetch(context.Background(), user.ID))

	assert.Same(t, winner, store.Profile())
	profiles.AssertExpectations(t)
}

func TestBootstrapperDegradesOnFetchError(t *testing.T) {
	store := appauth.NewStore()
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	require.True(t, store.SetAuth(store.Ticket(), newTestSession(user), user))

	profiles.On("GetByID", mock.Anything, user.ID).Return(nil, errors.New("connection refused"))

	bootstrap := appauth.NewProfileBootstrapper(store, profiles)
	err := bootstrap.Fetch(context.Background(), user.ID)

	require.Error(t, err)
	assert.True(t, appauth.IsProfileError(err))

	// Authenticated with a degraded profile, error recorded for display.
	state := store.State()
	assert.True(t, state.IsAuthenticated())
	assert.Nil(t, state.Profile)
	require.NotNil(t, state.AuthError)
	assert.Equal(t, "Failed to load user profile", state.AuthError.Message)
}

func TestBootstrapperSkipsCreateWhenSignedOut(t *testing.T) {
	store := appauth.NewStore()
	profiles := &MockProfiles{}
	user := newTestUser("ada@example.com")

	// No user in the store: the session went away mid-fetch.
	profiles.On("GetByID", mock.Anything, user.ID).Return(nil, repository.NewRecordNotFound())

	bootstrap := appauth.NewProfileBootstrapper(store, profiles)
	require.NoError(t, bootstrap.Fetch(context.Background(), user.ID))

	assert.Nil(t, store.Profile())
	profiles.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
