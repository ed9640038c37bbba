package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/account"
	"socialregistration/internal/db"
)

// DBResolver resolves identities through the social_profiles table.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (*account.User, error) {

	if identity == nil || identity.Provider == "" || identity.ExternalID == "" {
		return nil, errors.New("resolver: incomplete identity")
	}

	var (
		u     account.User
		email sql.NullString
	)

	// (provider, external_id) is unique, so at most one row matches
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.created_at
		FROM social_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.provider = $1
		  AND p.external_id = $2
	`,
		identity.Provider,
		identity.ExternalID,
	).Scan(&u.ID, &u.Username, &email, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: lookup %s identity: %w", identity.Provider, err)
	}

	u.Email = email.String
	return &u, nil
}
