package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"socialregistration/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__openid_state"
	nonceCookieName = "__openid_nonce"
	flowTTL         = 5 * time.Minute
)

// setFlowCookie stores a short-lived value that must survive the round
// trip to the provider.
func (h *Handler) setFlowCookie(c *gin.Context, name, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flowTTL.Seconds()),
	})
}

func (h *Handler) clearFlowCookies(c *gin.Context) {
	for _, name := range []string{stateCookieName, nonceCookieName, pkceCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

func flowCookie(c *gin.Context, name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) generateState(c *gin.Context) (string, error) {
	state, err := utils.RandomString(32)
	if err != nil {
		return "", err
	}
	h.setFlowCookie(c, stateCookieName, state)
	return state, nil
}

func (h *Handler) generateNonce(c *gin.Context) (string, error) {
	nonce, err := utils.RandomString(32)
	if err != nil {
		return "", err
	}
	h.setFlowCookie(c, nonceCookieName, nonce)
	return nonce, nil
}

func validateState(c *gin.Context) bool {
	stateQuery := c.Query("state")
	if stateQuery == "" {
		return false
	}

	stored := flowCookie(c, stateCookieName)
	if stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(stateQuery)) == 1
}
