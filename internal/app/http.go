package app

import (
	"context"
	"errors"
	"net/http"

	"socialregistration/internal/auth/account"
	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/auth/handler"
	"socialregistration/internal/auth/resolver"
	"socialregistration/internal/config"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/middleware"
	"socialregistration/internal/session"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := newRouter(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func newRouter(cfg config.Config, infra *Infra) (*gin.Engine, error) {
	// ----------------------------
	// Dependencies
	// ----------------------------

	providers, err := setupProviders(cfg)
	if err != nil {
		return nil, err
	}

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	accounts := account.NewStore(infra.DB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cookie := session.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	authHandler := handler.NewHandler(handler.Deps{
		Facebook:  providers.Facebook,
		OAuth:     providers.OAuth,
		OpenID:    providers.OpenID,
		Resolver:  resolver.NewDBResolver(infra.DB),
		Accounts:  accounts,
		Passwords: credentials.NewService(infra.DB),
		Metrics:   metrics.New(registry),
		Cookie:    cookie,
		URLs: handler.URLs{
			Site:          cfg.SiteURL,
			Login:         cfg.LoginURL,
			LoginRedirect: cfg.LoginRedirectURL,
		},
	})

	sessionLoader := middleware.NewSessionLoader(sessionStore, cfg.SessionTTL, cookie)
	authMiddleware := middleware.NewAuthMiddleware()

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(view.Templates())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// ----------------------------
	// Session Routes
	// ----------------------------

	web := router.Group("/")
	web.Use(sessionLoader.Handler())

	authHandler.RegisterRoutes(web)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := web.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", meHandler(accounts))

	return router, nil
}

type userGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (*account.User, error)
}

func meHandler(users userGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetString(middleware.ContextUserID))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if errors.Is(err, account.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err != nil {
			logger.Error("load current user failed", map[string]any{"error": err})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id":  user.ID.String(),
			"username": user.Username,
		})
	}
}
