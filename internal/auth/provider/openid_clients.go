package provider

import (
	"context"
	"fmt"

	"socialregistration/internal/auth"
)

// OpenIDClients serves each provider with the first client that has it.
// Named providers should come before clients accepting arbitrary
// identifiers.
type OpenIDClients []OpenIDClient

func (cs OpenIDClients) pick(provider string) (OpenIDClient, error) {
	for _, c := range cs {
		if c.Has(provider) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: openid provider %q", ErrUnknown, provider)
}

func (cs OpenIDClients) Has(provider string) bool {
	_, err := cs.pick(provider)
	return err == nil
}

func (cs OpenIDClients) Names() []string {
	var names []string
	for _, c := range cs {
		names = append(names, c.Names()...)
	}
	return names
}

func (cs OpenIDClients) AuthURL(ctx context.Context, provider string, params AuthParams) (string, error) {
	c, err := cs.pick(provider)
	if err != nil {
		return "", err
	}
	return c.AuthURL(ctx, provider, params)
}

func (cs OpenIDClients) Verify(ctx context.Context, provider string, params VerifyParams) (*auth.Identity, error) {
	c, err := cs.pick(provider)
	if err != nil {
		return nil, err
	}
	return c.Verify(ctx, provider, params)
}
