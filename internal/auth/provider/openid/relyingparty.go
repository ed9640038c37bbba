package openid

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/logger"

	openid2 "github.com/yohcop/openid-go"
)

// RelyingParty implements provider.OpenIDClient for OpenID 2.0. The
// provider is discovered from the identifier URL the user enters, and the
// verified claimed_id becomes the external id.
type RelyingParty struct {
	realm     string
	discovery openid2.DiscoveryCache
	nonces    openid2.NonceStore
}

// NewRelyingParty binds assertions to realm, normally the site root.
func NewRelyingParty(realm string) (*RelyingParty, error) {
	u, err := url.Parse(realm)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("openid realm must be an absolute http(s) URL: %q", realm)
	}

	return &RelyingParty{
		realm:     strings.TrimRight(realm, "/") + "/",
		discovery: openid2.NewSimpleDiscoveryCache(),
		nonces:    openid2.NewSimpleNonceStore(),
	}, nil
}

// identifierURL accepts http(s) URLs and bare host names such as
// "me.yahoo.com".
func identifierURL(identifier string) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false
	}

	bare := !strings.Contains(identifier, "://")
	if bare {
		identifier = "https://" + identifier
	}

	u, err := url.Parse(identifier)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if bare && !strings.Contains(u.Hostname(), ".") {
		return "", false
	}
	return u.String(), true
}

func (rp *RelyingParty) Has(identifier string) bool {
	_, ok := identifierURL(identifier)
	return ok
}

// Names is empty: any identifier URL is accepted.
func (rp *RelyingParty) Names() []string { return nil }

// AuthURL discovers the OP endpoint for identifier and builds a
// checkid_setup request. The state travels inside return_to.
func (rp *RelyingParty) AuthURL(_ context.Context, identifier string, params provider.AuthParams) (string, error) {
	id, ok := identifierURL(identifier)
	if !ok {
		return "", fmt.Errorf("%w: openid identifier %q", provider.ErrUnknown, identifier)
	}

	returnTo, err := url.Parse(params.ReturnTo)
	if err != nil {
		return "", fmt.Errorf("openid return_to: %w", err)
	}
	if params.State != "" {
		q := returnTo.Query()
		q.Set("state", params.State)
		returnTo.RawQuery = q.Encode()
	}

	redirect, err := openid2.RedirectURL(id, returnTo.String(), rp.realm)
	if err != nil {
		return "", fmt.Errorf("openid discovery for %s: %w", id, err)
	}
	return redirect, nil
}

// Verify checks the positive assertion against the callback URL. The
// signature is confirmed with the OP, the claimed_id is rediscovered and
// response nonces are accepted once.
func (rp *RelyingParty) Verify(_ context.Context, identifier string, params provider.VerifyParams) (*auth.Identity, error) {
	if _, ok := identifierURL(identifier); !ok {
		return nil, fmt.Errorf("%w: openid identifier %q", provider.ErrUnknown, identifier)
	}

	switch mode := params.Query.Get("openid.mode"); mode {
	case "id_res":
	case "":
		return nil, fmt.Errorf("%w: missing openid.mode", provider.ErrInvalidCallback)
	default:
		return nil, fmt.Errorf("%w: openid mode %s", provider.ErrInvalidCallback, mode)
	}

	callback, err := url.Parse(params.ReturnTo)
	if err != nil {
		return nil, fmt.Errorf("openid return_to: %w", err)
	}
	callback.RawQuery = params.Query.Encode()

	claimedID, err := openid2.Verify(callback.String(), rp.discovery, rp.nonces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidCallback, err)
	}
	if claimedID == "" {
		return nil, fmt.Errorf("%w: empty claimed_id", provider.ErrInvalidCallback)
	}

	logger.Info("openid assertion verified", map[string]any{
		"identifier": identifier,
		"op":         params.Query.Get("openid.op_endpoint"),
	})

	return &auth.Identity{
		Provider:   providerName,
		ExternalID: claimedID,
	}, nil
}
