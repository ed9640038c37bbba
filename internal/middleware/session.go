package middleware

import (
	"context"
	"errors"
	"time"

	"socialregistration/internal/logger"
	"socialregistration/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionLoader attaches a session to every request: the one named by the
// session cookie when it is still valid, a fresh anonymous one otherwise.
// Changes made by handlers are written back after the handler returns.
type SessionLoader struct {
	Store  session.Store
	TTL    time.Duration
	Cookie session.CookieOptions
}

func NewSessionLoader(store session.Store, ttl time.Duration, cookie session.CookieOptions) *SessionLoader {
	return &SessionLoader{Store: store, TTL: ttl, Cookie: cookie}
}

func (l *SessionLoader) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, fresh, err := l.load(c)
		if err != nil {
			logger.Error("session load failed", map[string]any{"error": err})
			c.AbortWithStatus(500)
			return
		}

		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))

		c.Next()

		l.save(c.Request.Context(), sess, fresh)
	}
}

// load reports fresh when the session has never been stored.
func (l *SessionLoader) load(c *gin.Context) (sess *session.Session, fresh bool, err error) {
	ctx := c.Request.Context()

	// 1. Existing session from cookie
	if id, ok := session.ReadCookie(c.Request, l.Cookie); ok {
		sess, err := l.Store.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if sess != nil && !sess.Expired(time.Now()) {
			return sess, false, nil
		}
		if sess != nil {
			_ = l.Store.Delete(ctx, id)
		}
	}

	// 2. New anonymous session; persisted only once something is stored
	sess, err = session.New(l.TTL)
	if err != nil {
		return nil, false, err
	}
	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, l.Cookie)
	return sess, true, nil
}

func (l *SessionLoader) save(ctx context.Context, sess *session.Session, fresh bool) {
	if !sess.Dirty() {
		return
	}

	rotated := false
	if prev := sess.PreviousID(); prev != "" {
		rotated = true
		if err := l.Store.Delete(ctx, prev); err != nil {
			logger.Warn("failed to delete rotated session", map[string]any{"error": err})
		}
	}

	if sess.Destroyed() {
		if err := l.Store.Delete(ctx, sess.SessionID); err != nil {
			logger.Warn("failed to delete session", map[string]any{"error": err})
		}
		return
	}

	// new ids never overwrite a stored session
	if fresh || rotated {
		if err := l.Store.Create(ctx, *sess); err != nil {
			logger.Error("failed to create session", map[string]any{
				"error":     err,
				"collision": errors.Is(err, session.ErrIDInUse),
			})
		}
		return
	}

	if err := l.Store.Update(ctx, *sess); err != nil {
		logger.Error("failed to persist session", map[string]any{"error": err})
	}
}

// Session returns the session attached by SessionLoader.
func Session(c *gin.Context) (*session.Session, bool) {
	return session.FromContext(c.Request.Context())
}
