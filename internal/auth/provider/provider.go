package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"socialregistration/internal/auth"
)

var (
	// ErrInvalidSession means a provider-issued session failed verification.
	ErrInvalidSession = errors.New("provider: invalid session")
	// ErrInvalidCallback means a provider redirected back with missing or
	// bad parameters.
	ErrInvalidCallback = errors.New("provider: invalid callback")
	// ErrNotImplemented marks a provider flow with no completion step.
	ErrNotImplemented = errors.New("provider: flow not implemented")
	ErrUnknown        = errors.New("provider: unknown provider")
)

// Implementations of the interfaces below return identity facts only and
// must not perform user creation, linking, or session management.

// SessionVerifier checks a session the provider established in the
// browser, such as a Facebook signed request.
type SessionVerifier interface {
	Name() string

	// VerifySession returns the identity carried by r or ErrInvalidSession.
	VerifySession(r *http.Request) (*auth.Identity, error)
}

// RequestToken is the temporary OAuth 1.0a credential.
type RequestToken struct {
	Token  string
	Secret string
}

// AccessToken is the OAuth 1.0a token credential.
type AccessToken struct {
	Key    string
	Secret string
}

// OAuthClient drives the OAuth 1.0a three-legged exchange for one service.
type OAuthClient interface {
	Name() string

	// RequestToken obtains a request token and the URL the user must be
	// sent to in order to authorize it.
	RequestToken() (RequestToken, string, error)

	// ParseCallback extracts the token and verifier from the provider
	// redirect or returns ErrInvalidCallback.
	ParseCallback(r *http.Request) (token string, verifier string, err error)

	Exchange(rt RequestToken, verifier string) (AccessToken, error)

	// UserInfo identifies the user owning at. Services without an identity
	// endpoint return ErrNotImplemented.
	UserInfo(ctx context.Context, at AccessToken) (*auth.Identity, error)
}

// OpenIDClient performs the OpenID redirect and verification. provider is
// either a configured provider name or an identifier URL typed by the user.
type OpenIDClient interface {
	Has(provider string) bool
	Names() []string

	// AuthURL returns where to send the user. returnTo must be the exact
	// callback URL later passed to Verify.
	AuthURL(ctx context.Context, provider string, params AuthParams) (string, error)

	// Verify validates the provider response and returns the claimed identity.
	Verify(ctx context.Context, provider string, params VerifyParams) (*auth.Identity, error)
}

type AuthParams struct {
	ReturnTo      string
	State         string
	Nonce         string
	CodeChallenge string
}

type VerifyParams struct {
	ReturnTo     string
	Code         string
	Nonce        string
	CodeVerifier string
	// Query is the full callback query, which OpenID 2.0 assertions are
	// verified against.
	Query url.Values
}
