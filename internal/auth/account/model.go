package account

import (
	"time"

	"socialregistration/internal/auth"

	"github.com/google/uuid"
)

// User is a local account. A zero ID means the user has not been saved.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Saved() bool {
	return u.ID != uuid.Nil
}

// Profile links an external identity to a local user. (Provider,
// ExternalID) identifies at most one profile.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Provider          string    `json:"provider"`
	ExternalID        string    `json:"external_id"`
	OAuthAccessKey    string    `json:"oauth_access_key,omitempty"`
	OAuthAccessSecret string    `json:"oauth_access_secret,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewProfile returns an unsaved profile for identity.
func NewProfile(identity *auth.Identity) Profile {
	return Profile{
		Provider:          identity.Provider,
		ExternalID:        identity.ExternalID,
		OAuthAccessKey:    identity.AccessKey,
		OAuthAccessSecret: identity.AccessSecret,
	}
}
