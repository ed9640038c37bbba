package app

import (
	"fmt"

	"socialregistration/internal/auth/handler"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/auth/provider/facebook"
	"socialregistration/internal/auth/provider/oauth1"
	"socialregistration/internal/auth/provider/openid"
	"socialregistration/internal/config"
	"socialregistration/internal/logger"
)

type providers struct {
	Facebook provider.SessionVerifier
	OAuth    *provider.Registry
	OpenID   provider.OpenIDClients
}

// setupProviders builds the provider clients enabled by cfg. A provider
// with no credentials configured is left out.
func setupProviders(cfg config.Config) (*providers, error) {
	p := &providers{}

	if cfg.FacebookAppID != "" {
		fb, err := facebook.New(cfg.FacebookAppID, cfg.FacebookSecretKey, cfg.FacebookMaxAge)
		if err != nil {
			return nil, err
		}
		p.Facebook = fb
	}

	var services []oauth1.Config
	if cfg.TwitterConsumerKey != "" {
		services = append(services, oauth1.Twitter(
			cfg.TwitterConsumerKey,
			cfg.TwitterConsumerSecretKey,
			cfg.URL(handler.OAuthCallbackPath("twitter")),
		))
	}
	if cfg.FriendFeedConsumerKey != "" {
		services = append(services, oauth1.FriendFeed(
			cfg.FriendFeedConsumerKey,
			cfg.FriendFeedConsumerSecretKey,
			cfg.URL(handler.OAuthCallbackPath("friendfeed")),
		))
	}
	for _, s := range cfg.OAuthServices() {
		callback := s.CallbackURL
		if callback == "" {
			callback = cfg.URL(handler.OAuthCallbackPath(s.Name))
		}
		services = append(services, oauth1.Config{
			Name:             s.Name,
			ConsumerKey:      s.ConsumerKey,
			ConsumerSecret:   s.ConsumerSecret,
			RequestTokenURL:  s.RequestTokenURL,
			AccessTokenURL:   s.AccessTokenURL,
			AuthorizationURL: s.AuthorizationURL,
			CallbackURL:      callback,
			UserInfoURL:      s.UserInfoURL,
			IDPath:           s.IDPath,
		})
	}

	clients := make([]provider.OAuthClient, 0, len(services))
	for _, s := range services {
		client, err := oauth1.New(s)
		if err != nil {
			return nil, fmt.Errorf("oauth service %q: %w", s.Name, err)
		}
		clients = append(clients, client)
	}
	p.OAuth = provider.NewRegistry(clients...)

	openIDProviders := make([]openid.ProviderConfig, 0, len(cfg.OpenIDProviders()))
	for _, op := range cfg.OpenIDProviders() {
		openIDProviders = append(openIDProviders, openid.ProviderConfig{
			Name:         op.Name,
			Issuer:       op.Issuer,
			ClientID:     op.ClientID,
			ClientSecret: op.ClientSecret,
			AuthURL:      op.AuthURL,
			Scopes:       op.Scopes,
		})
	}
	oidc, err := openid.New(openIDProviders...)
	if err != nil {
		return nil, err
	}
	// OpenID 2.0 identifiers are bound to the site root
	rp, err := openid.NewRelyingParty(cfg.SiteURL)
	if err != nil {
		return nil, err
	}
	p.OpenID = provider.OpenIDClients{oidc, rp}

	logger.Info("providers configured", map[string]any{
		"facebook": p.Facebook != nil,
		"oauth":    p.OAuth.Names(),
		"openid":   p.OpenID.Names(),
	})

	return p, nil
}
