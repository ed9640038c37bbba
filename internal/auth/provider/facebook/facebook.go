package facebook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/provider"

	fb "github.com/huandu/facebook/v2"
)

const (
	providerName = "facebook"

	// SignedRequestField is the form field used when the signed request is
	// posted instead of set as a cookie.
	SignedRequestField = "signed_request"
)

// Verifier validates the signed request the Facebook JS SDK stores in the
// fbsr_<app id> cookie or posts as signed_request.
type Verifier struct {
	appID  string
	app    *fb.App
	maxAge time.Duration
	now    func() time.Time
}

// New returns a verifier for the given app. maxAge bounds issued_at;
// zero disables the check.
func New(appID, appSecret string, maxAge time.Duration) (*Verifier, error) {
	if appID == "" || appSecret == "" {
		return nil, errors.New("facebook config missing app id or secret")
	}

	return &Verifier{
		appID:  appID,
		app:    fb.New(appID, appSecret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// Name returns the provider identifier stored on profiles.
func (v *Verifier) Name() string {
	return providerName
}

// CookieName is the cookie the JS SDK writes for this app.
func (v *Verifier) CookieName() string {
	return "fbsr_" + v.appID
}

// VerifySession checks the cookie first and falls back to the posted
// signed request, so a stale cookie does not mask a fresh login.
func (v *Verifier) VerifySession(r *http.Request) (*auth.Identity, error) {
	var candidates []string
	if c, err := r.Cookie(v.CookieName()); err == nil && c.Value != "" {
		candidates = append(candidates, c.Value)
	}
	if posted := r.FormValue(SignedRequestField); posted != "" {
		candidates = append(candidates, posted)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no signed request", provider.ErrInvalidSession)
	}

	var lastErr error
	for _, signed := range candidates {
		userID, err := v.parse(signed)
		if err == nil {
			return &auth.Identity{
				Provider:   providerName,
				ExternalID: userID,
			}, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", provider.ErrInvalidSession, lastErr)
}

// parse verifies the signature and returns the user id.
func (v *Verifier) parse(signed string) (string, error) {
	// some SDK versions pad the base64url parts
	sig, payload, ok := strings.Cut(signed, ".")
	if !ok {
		return "", errors.New("malformed signed request")
	}
	signed = strings.TrimRight(sig, "=") + "." + strings.TrimRight(payload, "=")

	res, err := v.app.ParseSignedRequest(signed)
	if err != nil {
		return "", err
	}

	userID, _ := res.Get("user_id").(string)
	if userID == "" {
		return "", errors.New("payload without user_id")
	}

	if v.maxAge > 0 {
		var issuedAt int64
		if err := res.DecodeField("issued_at", &issuedAt); err != nil {
			return "", fmt.Errorf("issued_at: %w", err)
		}
		if v.now().Sub(time.Unix(issuedAt, 0)) > v.maxAge {
			return "", errors.New("signed request expired")
		}
	}

	return userID, nil
}
