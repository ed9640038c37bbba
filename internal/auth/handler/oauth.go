package handler

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"socialregistration/internal/auth/account"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/session"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
)

// ErrProfileMissing means a resolved user has no profile for the provider
// that resolved it.
var ErrProfileMissing = errors.New("handler: linked user has no profile for provider")

// oauthClient looks up the :service client, answering 404 when unknown.
func (h *Handler) oauthClient(c *gin.Context) (provider.OAuthClient, bool) {
	client, err := h.oauth.Get(c.Param("service"))
	if err != nil {
		c.HTML(http.StatusNotFound, view.Error, gin.H{
			"error": "Unknown sign-in service.",
		})
		return nil, false
	}
	return client, true
}

// oauthRedirect obtains a request token and sends the user to the service
// to authorize it.
func (h *Handler) oauthRedirect(c *gin.Context) {
	client, ok := h.oauthClient(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	h.rememberNext(c, sess)

	rt, authURL, err := client.RequestToken()
	if err != nil {
		h.metrics.Login(client.Name(), metrics.OutcomeFailed)
		logger.Error("oauth request token failed", map[string]any{
			"service": client.Name(),
			"error":   err,
		})
		c.HTML(http.StatusBadGateway, view.OAuthCallback, gin.H{
			"service": client.Name(),
			"error":   fmt.Sprintf("We couldn't reach %s. Please try again.", client.Name()),
		})
		return
	}

	sess.Set(session.KeyOAuthRequestToken, rt.Token)
	sess.Set(session.KeyOAuthRequestSecret, rt.Secret)

	c.Redirect(http.StatusFound, authURL)
}

// oauthCallback trades the authorized request token for an access token
// and stores it for the completion step.
func (h *Handler) oauthCallback(c *gin.Context) {
	client, ok := h.oauthClient(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	at, err := h.exchange(c, sess, client)
	if err != nil {
		h.metrics.Login(client.Name(), metrics.OutcomeFailed)
		logger.Warn("oauth callback rejected", map[string]any{
			"service": client.Name(),
			"error":   err,
			"ip":      c.ClientIP(),
		})
		c.HTML(http.StatusBadRequest, view.OAuthCallback, gin.H{
			"service": client.Name(),
			"error":   fmt.Sprintf("We couldn't complete signing in with %s.", client.Name()),
		})
		return
	}

	sess.Set(session.KeyOAuthAccessKey, at.Key)
	sess.Set(session.KeyOAuthAccessSecret, at.Secret)

	c.Redirect(http.StatusFound, oauthCompletePath(client.Name()))
}

func (h *Handler) exchange(c *gin.Context, sess *session.Session, client provider.OAuthClient) (provider.AccessToken, error) {
	token, verifier, err := client.ParseCallback(c.Request)
	if err != nil {
		return provider.AccessToken{}, err
	}

	// the request token is single use whatever the outcome
	stored, okToken := sess.Pop(session.KeyOAuthRequestToken)
	secret, okSecret := sess.Pop(session.KeyOAuthRequestSecret)
	if !okToken || !okSecret {
		return provider.AccessToken{}, fmt.Errorf("%w: no request token in session", provider.ErrInvalidCallback)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return provider.AccessToken{}, fmt.Errorf("%w: request token mismatch", provider.ErrInvalidCallback)
	}

	return client.Exchange(provider.RequestToken{Token: stored, Secret: secret}, verifier)
}

// oauthComplete identifies the user behind the stored access token and
// logs them in, or stages a new account.
func (h *Handler) oauthComplete(c *gin.Context) {
	client, ok := h.oauthClient(c)
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	key, okKey := sess.Get(session.KeyOAuthAccessKey)
	secret, okSecret := sess.Get(session.KeyOAuthAccessSecret)
	if !okKey || !okSecret {
		c.Redirect(http.StatusFound, oauthRedirectPath(client.Name()))
		return
	}

	ctx := c.Request.Context()

	identity, err := client.UserInfo(ctx, provider.AccessToken{Key: key, Secret: secret})
	if errors.Is(err, provider.ErrNotImplemented) {
		c.HTML(http.StatusNotImplemented, view.Error, gin.H{
			"error": fmt.Sprintf("Signing in with %s is not supported yet.", client.Name()),
		})
		return
	}
	if err != nil {
		h.metrics.Login(client.Name(), metrics.OutcomeFailed)
		logger.Error("oauth user info failed", map[string]any{
			"service": client.Name(),
			"error":   err,
		})
		c.HTML(http.StatusBadGateway, view.OAuthCallback, gin.H{
			"service": client.Name(),
			"error":   fmt.Sprintf("We couldn't load your %s profile.", client.Name()),
		})
		return
	}

	// the identity carries the token from here on
	sess.Delete(session.KeyOAuthAccessKey, session.KeyOAuthAccessSecret)

	user, err := h.resolver.Resolve(ctx, identity)
	if errors.Is(err, account.ErrNotFound) {
		h.stage(c, sess, identity)
		return
	}
	if err != nil {
		h.internalError(c, "resolve identity failed", err)
		return
	}

	profile, err := h.accounts.Profile(ctx, user.ID, identity.Provider)
	if errors.Is(err, account.ErrNotFound) {
		err = fmt.Errorf("%w: user %s, provider %s", ErrProfileMissing, user.ID, identity.Provider)
	}
	if err != nil {
		h.internalError(c, "load oauth profile failed", err)
		return
	}

	if err := h.accounts.UpdateProfileTokens(ctx, profile.ID, identity.AccessKey, identity.AccessSecret); err != nil {
		h.internalError(c, "refresh oauth tokens failed", err)
		return
	}

	if err := h.establish(c, sess, user.ID); err != nil {
		h.internalError(c, "session login failed", err)
		return
	}

	h.metrics.Login(identity.Provider, metrics.OutcomeExisting)
	logger.Info("social login", map[string]any{
		"provider": identity.Provider,
		"user_id":  user.ID.String(),
		"ip":       c.ClientIP(),
	})

	c.Redirect(http.StatusFound, h.next(c, sess))
}
