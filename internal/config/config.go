package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// SiteURL is the canonical scheme://host the site is served on.
	// OpenID return-to URLs and default OAuth callbacks are built from it.
	SiteURL          string `env:"SITE_URL" envDefault:"http://localhost:8080"`
	LoginURL         string `env:"LOGIN_URL" envDefault:"/accounts/login"`
	LoginRedirectURL string `env:"LOGIN_REDIRECT_URL" envDefault:"/"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	// CookieSecure marks cookies Secure. Without it the session cookie is
	// named "session" instead of "__Host-session".
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	FacebookAppID     string        `env:"FACEBOOK_APP_ID"`
	FacebookSecretKey string        `env:"FACEBOOK_SECRET_KEY"`
	FacebookMaxAge    time.Duration `env:"FACEBOOK_SIGNED_REQUEST_MAX_AGE" envDefault:"0s"`

	TwitterConsumerKey       string `env:"TWITTER_CONSUMER_KEY"`
	TwitterConsumerSecretKey string `env:"TWITTER_CONSUMER_SECRET_KEY"`

	FriendFeedConsumerKey       string `env:"FRIENDFEED_CONSUMER_KEY"`
	FriendFeedConsumerSecretKey string `env:"FRIENDFEED_CONSUMER_SECRET_KEY"`

	OAuthServicesJSON   string `env:"OAUTH_SERVICES"`
	OpenIDProvidersJSON string `env:"OPENID_PROVIDERS"`

	oauthServices   []OAuthService
	openIDProviders []OpenIDProvider

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseDSN string `env:"DATABASE_DSN,required,notEmpty"`
}

// OAuthService describes an additional OAuth 1.0a service provider.
type OAuthService struct {
	Name             string `json:"name"`
	ConsumerKey      string `json:"consumer_key"`
	ConsumerSecret   string `json:"consumer_secret"`
	RequestTokenURL  string `json:"request_token_url"`
	AccessTokenURL   string `json:"access_token_url"`
	AuthorizationURL string `json:"authorization_url"`
	CallbackURL      string `json:"callback_url"`
	UserInfoURL      string `json:"user_info_url"`
	IDPath           string `json:"id_path"`
}

// OpenIDProvider describes an OpenID provider selectable via openid_provider.
type OpenIDProvider struct {
	Name         string   `json:"name"`
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	Scopes       []string `json:"scopes"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if raw := strings.TrimSpace(cfg.OAuthServicesJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.oauthServices); err != nil {
			return Config{}, fmt.Errorf("config: OAUTH_SERVICES: %w", err)
		}
	}
	if raw := strings.TrimSpace(cfg.OpenIDProvidersJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.openIDProviders); err != nil {
			return Config{}, fmt.Errorf("config: OPENID_PROVIDERS: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: SITE_URL must be an absolute url, got %q", c.SiteURL)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if (c.FacebookAppID == "") != (c.FacebookSecretKey == "") {
		return errors.New("config: FACEBOOK_APP_ID and FACEBOOK_SECRET_KEY must be set together")
	}

	seen := map[string]bool{"twitter": true, "friendfeed": true}
	for _, s := range c.oauthServices {
		if s.Name == "" {
			return errors.New("config: oauth service without name")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate oauth service %q", s.Name)
		}
		seen[s.Name] = true
	}

	providers := map[string]bool{}
	for _, p := range c.openIDProviders {
		if p.Name == "" || p.Issuer == "" || p.ClientID == "" {
			return fmt.Errorf("config: openid provider %q missing name, issuer or client_id", p.Name)
		}
		if providers[p.Name] {
			return fmt.Errorf("config: duplicate openid provider %q", p.Name)
		}
		providers[p.Name] = true
	}

	return nil
}

// OAuthServices returns the services decoded from OAUTH_SERVICES.
func (c Config) OAuthServices() []OAuthService {
	return c.oauthServices
}

// OpenIDProviders returns the providers decoded from OPENID_PROVIDERS.
func (c Config) OpenIDProviders() []OpenIDProvider {
	return c.openIDProviders
}

// URL joins path onto the canonical site url.
func (c Config) URL(path string) string {
	return strings.TrimRight(c.SiteURL, "/") + path
}
