package handler

import (
	"context"
	"errors"
	"net/http"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/account"
	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/auth/resolver"
	"socialregistration/internal/auth/staging"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/middleware"
	"socialregistration/internal/session"
	"socialregistration/internal/validation"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SetupPath          = "/social/setup"
	OpenIDCallbackPath = "/social/openid/callback"
	openIDRedirectPath = "/social/openid/redirect"
)

// OAuthCallbackPath is where an OAuth service sends the user back to.
func OAuthCallbackPath(service string) string {
	return "/social/oauth/" + service + "/callback"
}

func oauthRedirectPath(service string) string {
	return "/social/oauth/" + service + "/redirect"
}

func oauthCompletePath(service string) string {
	return "/social/oauth/" + service + "/complete"
}

// AccountStore is the persistence the flows need; *account.Store
// implements it.
type AccountStore interface {
	Create(ctx context.Context, u *account.User, p *account.Profile, cred *credentials.Credential) error
	LinkProfile(ctx context.Context, userID uuid.UUID, p *account.Profile) (bool, error)
	Profile(ctx context.Context, userID uuid.UUID, provider string) (*account.Profile, error)
	UpdateProfileTokens(ctx context.Context, profileID uuid.UUID, key, secret string) error
	GetUser(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// PasswordService checks the optional local passwords chosen at setup;
// *credentials.Service implements it.
type PasswordService interface {
	Authenticate(ctx context.Context, username, password string) (uuid.UUID, error)
}

// URLs are the site locations the flows redirect to.
type URLs struct {
	// Site is the canonical scheme://host, used for OpenID return-to URLs.
	Site          string
	Login         string
	LoginRedirect string
}

type Deps struct {
	Facebook  provider.SessionVerifier // nil disables Facebook
	OAuth     *provider.Registry
	OpenID    provider.OpenIDClient
	Resolver  resolver.Resolver
	Accounts  AccountStore
	Passwords PasswordService
	Metrics   *metrics.Metrics
	Cookie    session.CookieOptions
	URLs      URLs
}

type Handler struct {
	facebook  provider.SessionVerifier
	oauth     *provider.Registry
	openid    provider.OpenIDClient
	resolver  resolver.Resolver
	accounts  AccountStore
	passwords PasswordService
	metrics   *metrics.Metrics
	validate  *validation.Validator
	cookie    session.CookieOptions
	urls      URLs
}

func NewHandler(deps Deps) *Handler {
	oauth := deps.OAuth
	if oauth == nil {
		oauth = provider.NewRegistry()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	urls := deps.URLs
	if urls.LoginRedirect == "" {
		urls.LoginRedirect = "/"
	}
	if urls.Login == "" {
		urls.Login = "/accounts/login"
	}

	return &Handler{
		facebook:  deps.Facebook,
		oauth:     oauth,
		openid:    deps.OpenID,
		resolver:  deps.Resolver,
		accounts:  deps.Accounts,
		passwords: deps.Passwords,
		metrics:   m,
		validate:  validation.New(),
		cookie:    deps.Cookie,
		urls:      urls,
	}
}

// RegisterRoutes mounts the flows. The router must run
// middleware.SessionLoader and have the view templates loaded.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	social := r.Group("/social")

	if h.facebook != nil {
		social.GET("/facebook/login", h.facebookLogin)
		social.POST("/facebook/login", h.facebookLogin)
		social.GET("/facebook/connect", h.facebookConnect)
		social.POST("/facebook/connect", h.facebookConnect)
	}

	social.GET("/oauth/:service/redirect", h.oauthRedirect)
	social.GET("/oauth/:service/callback", h.oauthCallback)
	social.GET("/oauth/:service/complete", h.oauthComplete)

	social.GET("/openid/redirect", h.openIDRedirect)
	social.GET("/openid/callback", h.openIDCallback)

	social.GET("/setup", h.setup)
	social.POST("/setup", h.setup)

	r.GET("/accounts/login", h.loginPage)
	r.POST("/accounts/login", h.Login)
	r.POST("/accounts/logout", h.Logout)
}

// session returns the request session or answers 500 when the loader
// middleware is missing.
func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	sess, ok := middleware.Session(c)
	if !ok {
		logger.Error("no session on request", map[string]any{"path": c.FullPath()})
		c.AbortWithStatus(http.StatusInternalServerError)
	}
	return sess, ok
}

// establish logs userID in on sess and reissues the rotated cookie.
func (h *Handler) establish(c *gin.Context, sess *session.Session, userID uuid.UUID) error {
	if err := sess.Login(userID.String()); err != nil {
		return err
	}
	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, h.cookie)
	return nil
}

// loginOrStage logs in the account linked to identity, or stages a new
// account and sends the user to the setup step.
func (h *Handler) loginOrStage(c *gin.Context, sess *session.Session, identity *auth.Identity) {
	user, err := h.resolver.Resolve(c.Request.Context(), identity)
	if errors.Is(err, account.ErrNotFound) {
		h.stage(c, sess, identity)
		return
	}
	if err != nil {
		h.internalError(c, "resolve identity failed", err)
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

// stage keeps an unsaved user and profile in the session. Nothing is
// written to the database until setup is submitted.
func (h *Handler) stage(c *gin.Context, sess *session.Session, identity *auth.Identity) {
	err := staging.Stage(sess, account.User{Email: identity.Email}, account.NewProfile(identity))
	if err != nil {
		h.internalError(c, "staging identity failed", err)
		return
	}

	h.rememberNext(c, sess)
	h.metrics.Login(identity.Provider, metrics.OutcomeStaged)

	c.Redirect(http.StatusFound, SetupPath)
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, map[string]any{
		"path":  c.FullPath(),
		"error": err,
	})
	c.HTML(http.StatusInternalServerError, view.Error, gin.H{
		"error": "Something went wrong while signing you in. Please try again.",
	})
}
