package handler

import (
	"net/url"
	"strings"

	"socialregistration/internal/session"

	"github.com/gin-gonic/gin"
)

// next resolves where to send the user once a flow finishes: a location
// stored in the session (consumed), then the "next" query or form value,
// then the configured default. Only local paths are honoured.
func (h *Handler) next(c *gin.Context, sess *session.Session) string {
	if v, ok := sess.Pop(session.KeyNext); ok && localPath(v) {
		return v
	}
	if v := c.Query("next"); localPath(v) {
		return v
	}
	if v := c.PostForm("next"); localPath(v) {
		return v
	}
	return h.urls.LoginRedirect
}

// rememberNext keeps the requested next location across a provider
// round trip.
func (h *Handler) rememberNext(c *gin.Context, sess *session.Session) {
	sess.Set(session.KeyNext, h.next(c, sess))
}

func localPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}
