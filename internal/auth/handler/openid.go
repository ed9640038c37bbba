package handler

import (
	"errors"
	"net/http"
	"strings"

	"socialregistration/internal/auth/provider"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/session"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
)

const openIDError = "We couldn't verify your OpenID sign-in."

// returnTo is the callback URL on the canonical site domain. It must be
// identical at redirect and verification time.
func (h *Handler) returnTo() string {
	return strings.TrimRight(h.urls.Site, "/") + OpenIDCallbackPath
}

// openIDRedirect starts an OpenID sign-in with the provider named by the
// openid_provider parameter: a configured provider name or an OpenID
// identifier URL.
func (h *Handler) openIDRedirect(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	name := strings.TrimSpace(c.Query("openid_provider"))
	if h.openid == nil || !h.openid.Has(name) {
		c.HTML(http.StatusBadRequest, view.OpenID, gin.H{
			"error": "Unknown OpenID provider.",
		})
		return
	}

	h.rememberNext(c, sess)
	sess.Set(session.KeyOpenIDProvider, name)

	state, err := h.generateState(c)
	if err != nil {
		h.internalError(c, "openid state failed", err)
		return
	}
	nonce, err := h.generateNonce(c)
	if err != nil {
		h.internalError(c, "openid nonce failed", err)
		return
	}
	_, challenge, err := h.generatePKCE(c)
	if err != nil {
		h.internalError(c, "openid pkce failed", err)
		return
	}

	authURL, err := h.openid.AuthURL(c.Request.Context(), name, provider.AuthParams{
		ReturnTo:      h.returnTo(),
		State:         state,
		Nonce:         nonce,
		CodeChallenge: challenge,
	})
	if err != nil {
		h.metrics.Login("openid", metrics.OutcomeFailed)
		logger.Error("openid discovery failed", map[string]any{
			"provider": name,
			"error":    err,
		})
		c.HTML(http.StatusBadGateway, view.OpenID, gin.H{"error": openIDError})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// openIDCallback verifies the provider response for the provider chosen
// at redirect time.
func (h *Handler) openIDCallback(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	name, _ := sess.Pop(session.KeyOpenIDProvider)
	nonce := flowCookie(c, nonceCookieName)
	verifier := getPKCEVerifier(c)
	stateOK := validateState(c)
	h.clearFlowCookies(c)

	var err error
	switch {
	case h.openid == nil || !h.openid.Has(name):
		err = errors.New("no openid provider in session")
	case !stateOK:
		err = errors.New("invalid state")
	case c.Query("error") != "":
		err = errors.New("provider returned " + c.Query("error"))
	}

	if err == nil {
		identity, verr := h.openid.Verify(c.Request.Context(), name, provider.VerifyParams{
			ReturnTo:     h.returnTo(),
			Code:         c.Query("code"),
			Nonce:        nonce,
			CodeVerifier: verifier,
			Query:        c.Request.URL.Query(),
		})
		if verr == nil {
			h.loginOrStage(c, sess, identity)
			return
		}
		err = verr
	}

	h.metrics.Login("openid", metrics.OutcomeFailed)
	logger.Warn("openid verification failed", map[string]any{
		"provider": name,
		"error":    err,
		"ip":       c.ClientIP(),
	})
	c.HTML(http.StatusUnauthorized, view.OpenID, gin.H{"error": openIDError})
}
