package resolver

import (
	"context"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/account"
)

// Resolver determines which local user an external identity is linked to.
// It is the only authentication path for returning social users and never
// creates accounts; an unlinked identity yields account.ErrNotFound.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (*account.User, error)
}
