package appauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the stable identity record owned by the auth backend. Metadata
// carries the attributes captured at sign-up (full_name, country).
type User struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email,omitempty"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// MetadataString returns a string attribute from the sign-up metadata.
func (u *User) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	if v, ok := u.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// Session is the backend-issued proof of an authenticated connection,
// mirrored read-only into the Store.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// Expired reports whether the access token expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Profile is the application-level user record, distinct from the identity
// record and created lazily on the first cache miss after a session appears.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Email         string         `bun:"email,notnull" json:"email,omitempty"`
	FullName      string         `bun:"full_name,notnull" json:"full_name,omitempty"`
	Country       string         `bun:"country" json:"country,omitempty"`
	Phone         string         `bun:"phone" json:"phone,omitempty"`
	AvatarURL     string         `bun:"avatar_url" json:"avatar_url,omitempty"`
	IsAdmin       bool           `bun:"is_admin" json:"is_admin,omitempty"`
	IsActive      bool           `bun:"is_active" json:"is_active,omitempty"`
	Preferences   map[string]any `bun:"preferences,type:jsonb" json:"preferences,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ProfileUpdate is a partial profile mutation; nil fields are untouched.
type ProfileUpdate struct {
	FullName    *string        `json:"full_name,omitempty"`
	Country     *string        `json:"country,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	AvatarURL   *string        `json:"avatar_url,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Apply copies the non-nil fields onto the profile record.
func (c ProfileUpdate) Apply(p *Profile) {
	if c.FullName != nil {
		p.FullName = *c.FullName
	}
	if c.Country != nil {
		p.Country = *c.Country
	}
	if c.Phone != nil {
		p.Phone = *c.Phone
	}
	if c.AvatarURL != nil {
		p.AvatarURL = *c.AvatarURL
	}
	if c.Preferences != nil {
		p.Preferences = c.Preferences
	}
}
