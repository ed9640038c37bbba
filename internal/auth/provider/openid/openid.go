package openid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const providerName = "openid"

// ProviderConfig describes one OpenID provider the user may pick.
type ProviderConfig struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	// AuthURL overrides the discovered authorization endpoint, for
	// providers whose public URL differs from the issuer reachable by the
	// server (e.g. a Keycloak behind a proxy).
	AuthURL string
	Scopes  []string
}

type discovered struct {
	endpoint oauth2.Endpoint
	verifier *oidc.IDTokenVerifier
}

// Client implements provider.OpenIDClient with OpenID Connect discovery.
// Discovery runs once per provider and is cached.
type Client struct {
	providers map[string]ProviderConfig

	mu    sync.Mutex
	cache map[string]*discovered
}

func New(list ...ProviderConfig) (*Client, error) {
	m := make(map[string]ProviderConfig, len(list))
	for _, p := range list {
		if p.Name == "" || p.Issuer == "" || p.ClientID == "" {
			return nil, errors.New("openid config missing name, issuer or client id")
		}
		m[p.Name] = p
	}

	return &Client{
		providers: m,
		cache:     make(map[string]*discovered),
	}, nil
}

func (c *Client) Has(name string) bool {
	_, ok := c.providers[name]
	return ok
}

func (c *Client) Names() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) discover(ctx context.Context, name string) (ProviderConfig, *discovered, error) {
	cfg, ok := c.providers[name]
	if !ok {
		return ProviderConfig{}, nil, fmt.Errorf("%w: openid provider %q", provider.ErrUnknown, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.cache[name]; ok {
		return cfg, d, nil
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to init %s oidc provider: %w", name, err)
	}

	ep := oidcProvider.Endpoint()
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}

	d := &discovered{
		endpoint: ep,
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}
	c.cache[name] = d
	return cfg, d, nil
}

func (c *Client) oauthConfig(cfg ProviderConfig, d *discovered, returnTo string) *oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"email", "profile"}
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  returnTo,
		Endpoint:     d.endpoint,
		Scopes:       append([]string{oidc.ScopeOpenID}, scopes...),
	}
}

// AuthURL builds the authorization URL with nonce and PKCE parameters.
func (c *Client) AuthURL(ctx context.Context, name string, params provider.AuthParams) (string, error) {
	cfg, d, err := c.discover(ctx, name)
	if err != nil {
		return "", err
	}

	return c.oauthConfig(cfg, d, params.ReturnTo).AuthCodeURL(
		params.State,
		oauth2.AccessTypeOnline,
		oidc.Nonce(params.Nonce),
		oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// Verify exchanges the authorization code and validates the ID token. The
// claimed identity is "<issuer>#<subject>", which is stable per provider
// account.
func (c *Client) Verify(ctx context.Context, name string, params provider.VerifyParams) (*auth.Identity, error) {
	cfg, d, err := c.discover(ctx, name)
	if err != nil {
		return nil, err
	}

	if params.Code == "" || params.Nonce == "" || params.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: missing code, nonce or verifier", provider.ErrInvalidCallback)
	}

	token, err := c.oauthConfig(cfg, d, params.ReturnTo).Exchange(
		ctx,
		params.Code,
		oauth2.SetAuthURLParam("code_verifier", params.CodeVerifier),
	)
	if err != nil {
		logger.Error("openid token exchange failed", map[string]any{
			"provider": name,
			"error":    err,
		})
		return nil, fmt.Errorf("%w: %s token exchange: %v", provider.ErrInvalidCallback, name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: %s did not return id_token", provider.ErrInvalidCallback, name)
	}

	idToken, err := d.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s id_token verification: %v", provider.ErrInvalidCallback, name, err)
	}

	if idToken.Nonce != params.Nonce {
		return nil, fmt.Errorf("%w: %s id_token nonce mismatch", provider.ErrInvalidCallback, name)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", name, err)
	}

	logger.Info("openid verified", map[string]any{
		"provider":       name,
		"issuer":         idToken.Issuer,
		"email_verified": claims.EmailVerified,
		"expiry_unix":    idToken.Expiry.Unix(),
	})

	identity := &auth.Identity{
		Provider:   providerName,
		ExternalID: idToken.Issuer + "#" + idToken.Subject,
	}
	if claims.EmailVerified {
		identity.Email = claims.Email
	}
	return identity, nil
}
