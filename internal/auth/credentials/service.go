package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"socialregistration/internal/db"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// Authenticate checks username and password and returns the user id.
func (s *Service) Authenticate(
	ctx context.Context,
	username string,
	password string,
) (uuid.UUID, error) {

	var (
		userID       uuid.UUID
		passwordHash string
	)

	// 1. Find user + credentials
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.username) = LOWER($1)
	`, username).Scan(&userID, &passwordHash)

	if errors.Is(err, sql.ErrNoRows) {
		// hide whether user exists or not
		return uuid.Nil, ErrInvalidCredentials
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("credentials: lookup: %w", err)
	}

	// 2. Verify password
	if err := VerifyPassword(passwordHash, password); err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	return userID, nil
}
