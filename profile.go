package appauth

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

const (
	defaultFullName = "User"
	defaultCountry  = "Unknown"
)

// ProfileBootstrapper resolves the profile row for a user id, creating a
// default row on the first miss. The read-or-create is idempotent: row
// uniqueness is owned by the store's primary key, so concurrent fetches for
// the same id settle on the same single row.
type ProfileBootstrapper struct {
	store    *Store
	profiles Profiles
	logger   Logger
}

// NewProfileBootstrapper wires the bootstrapper to its state container and
// row store.
func NewProfileBootstrapper(store *Store, profiles Profiles) *ProfileBootstrapper {
	return &ProfileBootstrapper{
		store:    store,
		profiles: profiles,
		logger:   defLogger{},
	}
}

func (b *ProfileBootstrapper) WithLogger(logger Logger) *ProfileBootstrapper {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Fetch loads the profile row for userID into the store. A missing row is
// created from the sign-up metadata of the currently known user and
// re-fetched to confirm. Failures degrade to a nil profile with the error
// recorded on the store; the caller stays authenticated.
func (b *ProfileBootstrapper) Fetch(ctx context.Context, userID uuid.UUID) error {
	ticket := b.store.Ticket()
	b.store.BeginOp()
	defer b.store.EndOp()

	profile, err := b.profiles.GetByID(ctx, userID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return b.degrade(ticket, err)
	}

	if profile == nil || repository.IsRecordNotFound(err) {
		user := b.store.User()
		if user == nil || user.ID != userID {
			// The session went away while we were fetching; nothing to create.
			b.store.SetProfile(ticket, nil)
			return nil
		}

		if err := b.createDefault(ctx, user); err != nil {
			return b.degrade(ticket, err)
		}

		profile, err = b.profiles.GetByID(ctx, userID)
		if err != nil {
			return b.degrade(ticket, err)
		}
	}

	b.store.SetProfile(ticket, profile)
	return nil
}

// createDefault inserts the default row for user. A conflict means another
// path created it first and counts as success.
func (b *ProfileBootstrapper) createDefault(ctx context.Context, user *User) error {
	profile := DefaultProfile(user)

	if _, err := b.profiles.Insert(ctx, profile); err != nil {
		if IsConflictError(err) {
			b.logger.Debug("profile row already exists", "user_id", user.ID)
			return nil
		}
		return err
	}

	b.logger.Info("created default profile", "user_id", user.ID)
	return nil
}

func (b *ProfileBootstrapper) degrade(ticket uint64, err error) error {
	translated := TranslateProfileError(err)
	b.logger.Error("profile fetch failed", "error", err)
	b.store.SetProfile(ticket, nil)
	b.store.SetAuthError(translated)
	return translated
}

// DefaultProfile builds the row created on a profile cache miss, deriving
// full_name and country from the sign-up metadata when available.
func DefaultProfile(user *User) *Profile {
	fullName := user.MetadataString("full_name")
	if fullName == "" {
		fullName = defaultFullName
	}

	country := user.MetadataString("country")
	if country == "" {
		country = defaultCountry
	}

	return &Profile{
		ID:       user.ID,
		Email:    user.Email,
		FullName: fullName,
		Country:  country,
		IsActive: true,
	}
}
