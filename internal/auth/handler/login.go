package handler

import (
	"errors"
	"net/http"

	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/logger"
	"socialregistration/internal/session"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (h *Handler) loginPage(c *gin.Context) {
	h.renderLogin(c, http.StatusOK, c.Query("next"), "", "")
}

// Login signs in with the optional password chosen at setup.
func (h *Handler) Login(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || req.Username == "" || req.Password == "" {
		h.renderLogin(c, http.StatusBadRequest, req.Next, req.Username, "Enter your username and password.")
		return
	}

	userID, err := h.passwords.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, credentials.ErrInvalidCredentials) {
		logger.Warn("password login failed", map[string]any{"ip": c.ClientIP()})
		h.renderLogin(c, http.StatusUnauthorized, req.Next, req.Username, "Invalid username or password.")
		return
	}
	if err != nil {
		h.internalError(c, "password login failed", err)
		return
	}

	if err := h.establish(c, sess, userID); err != nil {
		h.internalError(c, "session login failed", err)
		return
	}

	c.Redirect(http.StatusFound, h.next(c, sess))
}

// Logout destroys the session and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	sess.Destroy()
	session.ClearCookie(c.Writer, h.cookie)

	c.Status(http.StatusNoContent)
}

func (h *Handler) renderLogin(c *gin.Context, status int, next, username, msg string) {
	if !localPath(next) {
		next = ""
	}

	var openid []string
	if h.openid != nil {
		openid = h.openid.Names()
	}

	c.HTML(status, view.Login, gin.H{
		"next":     next,
		"username": username,
		"error":    msg,
		"facebook": h.facebook != nil,
		"oauth":    h.oauth.Names(),
		"openid":   openid,
		// identifier URLs are accepted whenever OpenID is enabled
		"openidURL": h.openid != nil,
	})
}
