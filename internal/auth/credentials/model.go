package credentials

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the optional local password of a socially registered user.
// It is written together with the account it belongs to.
type Credential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PasswordHash string
	HashVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewCredential hashes password into an unsaved credential.
func NewCredential(password string) (*Credential, error) {
	hash, version, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Credential{PasswordHash: hash, HashVersion: version}, nil
}
