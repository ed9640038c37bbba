package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("account: not found")
	ErrUsernameTaken = errors.New("account: username already taken")
	ErrProfileLinked = errors.New("account: profile already linked to another user")
	ErrProviderInUse = errors.New("account: user already has a profile for this provider")
)

const uniqueViolation = "23505"

// Store persists users and their provider profiles. Uniqueness is left to
// the database constraints; violations come back as the errors above.
type Store struct {
	db *db.DB
}

func NewStore(db *db.DB) *Store {
	return &Store{db: db}
}

// Create saves a new user together with its first profile and, when cred
// is not nil, its password in one transaction, filling in the generated ids.
func (s *Store) Create(ctx context.Context, u *User, p *Profile, cred *credentials.Credential) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("account: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, email)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at
	`, strings.TrimSpace(u.Username), u.Email).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return translate(err)
	}

	p.UserID = u.ID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO social_profiles
			(user_id, provider, external_id, oauth_access_key, oauth_access_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.UserID, p.Provider, p.ExternalID, p.OAuthAccessKey, p.OAuthAccessSecret,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return translate(err)
	}

	if cred != nil {
		cred.UserID = u.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO credentials (user_id, password_hash, hash_version)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, cred.UserID, cred.PasswordHash, cred.HashVersion,
		).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
		if err != nil {
			return fmt.Errorf("account: store credential: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("account: commit: %w", err)
	}
	return nil
}

// LinkProfile attaches p to an existing user unless that exact link
// already exists. It reports whether a row was created.
func (s *Store) LinkProfile(ctx context.Context, userID uuid.UUID, p *Profile) (bool, error) {
	p.UserID = userID

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO social_profiles
			(user_id, provider, external_id, oauth_access_key, oauth_access_secret)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, external_id) DO NOTHING
		RETURNING id, created_at
	`, userID, p.Provider, p.ExternalID, p.OAuthAccessKey, p.OAuthAccessSecret,
	).Scan(&p.ID, &p.CreatedAt)

	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, translate(err)
	}

	// conflict: the identity is linked already, find out to whom
	var owner uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at
		FROM social_profiles
		WHERE provider = $1
		  AND external_id = $2
	`, p.Provider, p.ExternalID).Scan(&p.ID, &owner, &p.CreatedAt)
	if err != nil {
		return false, translate(err)
	}

	if owner != userID {
		return false, ErrProfileLinked
	}
	return false, nil
}

// Profile returns the user's profile for provider.
func (s *Store) Profile(ctx context.Context, userID uuid.UUID, provider string) (*Profile, error) {
	p := Profile{UserID: userID, Provider: provider}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, oauth_access_key, oauth_access_secret, created_at
		FROM social_profiles
		WHERE user_id = $1
		  AND provider = $2
	`, userID, provider).Scan(&p.ID, &p.ExternalID, &p.OAuthAccessKey, &p.OAuthAccessSecret, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}

	return &p, nil
}

// UpdateProfileTokens stores refreshed OAuth access-token material.
func (s *Store) UpdateProfileTokens(ctx context.Context, profileID uuid.UUID, key, secret string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE social_profiles
		SET oauth_access_key = $2,
		    oauth_access_secret = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, profileID, key, secret)
	if err != nil {
		return translate(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u := User{ID: id}
	var email sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT username, email, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.Username, &email, &u.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}

	u.Email = email.String
	return &u, nil
}

// translate maps driver errors onto the package errors.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case db.ConstraintUsernameUnique:
			return ErrUsernameTaken
		case db.ConstraintProfileUnique:
			return ErrProfileLinked
		case db.ConstraintUserProviderUnique:
			return ErrProviderInUse
		}
	}

	return fmt.Errorf("account: %w", err)
}
