// Package staging holds the unsaved (user, profile) pair between a first
// successful provider login and the submission of the setup form.
package staging

import (
	"encoding/json"
	"errors"
	"fmt"

	"socialregistration/internal/auth/account"
	"socialregistration/internal/session"

	"github.com/google/uuid"
)

var ErrNothingStaged = errors.New("staging: no pending identity in session")

// Pending is a staged identity awaiting setup.
type Pending struct {
	User    account.User
	Profile account.Profile
}

// Stage stores the pair in s, replacing any earlier staged identity.
func Stage(s *session.Session, user account.User, profile account.Profile) error {
	if user.Saved() || profile.ID != uuid.Nil {
		return errors.New("staging: only unsaved records can be staged")
	}
	if profile.Provider == "" || profile.ExternalID == "" {
		return errors.New("staging: profile without provider identity")
	}

	u, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("staging: encode user: %w", err)
	}
	p, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("staging: encode profile: %w", err)
	}

	s.Set(session.KeyPendingUser, string(u))
	s.Set(session.KeyPendingProfile, string(p))
	return nil
}

// Load returns the staged pair. Both halves must be present.
func Load(s *session.Session) (*Pending, error) {
	rawUser, okUser := s.Get(session.KeyPendingUser)
	rawProfile, okProfile := s.Get(session.KeyPendingProfile)
	if !okUser || !okProfile {
		return nil, ErrNothingStaged
	}

	var p Pending
	if err := json.Unmarshal([]byte(rawUser), &p.User); err != nil {
		return nil, fmt.Errorf("staging: decode user: %w", err)
	}
	if err := json.Unmarshal([]byte(rawProfile), &p.Profile); err != nil {
		return nil, fmt.Errorf("staging: decode profile: %w", err)
	}

	return &p, nil
}

// Clear removes the staged pair.
func Clear(s *session.Session) {
	s.Delete(session.KeyPendingUser, session.KeyPendingProfile)
}
