package handler

import (
	"errors"
	"net/http"

	"socialregistration/internal/auth/account"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const facebookError = "We couldn't validate your Facebook credentials"

// facebookLogin signs in with the Facebook session already established
// in the browser by the JavaScript SDK.
func (h *Handler) facebookLogin(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	identity, err := h.facebook.VerifySession(c.Request)
	if err != nil {
		h.facebookFailed(c, err)
		return
	}

	h.loginOrStage(c, sess, identity)
}

// facebookConnect links the Facebook account to the signed-in user.
func (h *Handler) facebookConnect(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	if !sess.Authenticated() {
		h.facebookFailed(c, errors.New("connect without signed-in user"))
		return
	}

	identity, err := h.facebook.VerifySession(c.Request)
	if err != nil {
		h.facebookFailed(c, err)
		return
	}

	userID, err := uuid.Parse(sess.UserID)
	if err != nil {
		h.internalError(c, "invalid session user id", err)
		return
	}

	profile := account.NewProfile(identity)
	created, err := h.accounts.LinkProfile(c.Request.Context(), userID, &profile)
	switch {
	case errors.Is(err, account.ErrProfileLinked):
		c.HTML(http.StatusConflict, view.Facebook, gin.H{
			"error": "This Facebook account is already connected to another user.",
		})
		return
	case errors.Is(err, account.ErrProviderInUse):
		c.HTML(http.StatusConflict, view.Facebook, gin.H{
			"error": "Your account is already connected to a different Facebook account.",
		})
		return
	case err != nil:
		h.internalError(c, "link facebook profile failed", err)
		return
	}

	if created {
		h.metrics.Login(identity.Provider, metrics.OutcomeConnected)
		logger.Info("facebook profile connected", map[string]any{
			"user_id": userID.String(),
		})
	}

	c.Redirect(http.StatusFound, h.next(c, sess))
}

func (h *Handler) facebookFailed(c *gin.Context, err error) {
	h.metrics.Login(h.facebook.Name(), metrics.OutcomeFailed)
	logger.Warn("facebook verification failed", map[string]any{
		"error": err,
		"ip":    c.ClientIP(),
	})
	c.HTML(http.StatusUnauthorized, view.Facebook, gin.H{"error": facebookError})
}
