package oauth1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/provider"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"
	"github.com/tidwall/gjson"
)

const maxUserInfoBytes = 1 << 20

// Config describes one OAuth 1.0a service provider.
type Config struct {
	Name             string
	ConsumerKey      string
	ConsumerSecret   string
	RequestTokenURL  string
	AccessTokenURL   string
	AuthorizationURL string
	CallbackURL      string

	// UserInfoURL returns a JSON document identifying the token owner and
	// IDPath is the gjson path of the identifier inside it. Leaving
	// UserInfoURL empty means the service has no completion step.
	UserInfoURL string
	IDPath      string
}

// Twitter returns the configuration for Twitter sign-in.
func Twitter(consumerKey, consumerSecret, callbackURL string) Config {
	return Config{
		Name:             "twitter",
		ConsumerKey:      consumerKey,
		ConsumerSecret:   consumerSecret,
		RequestTokenURL:  twitter.AuthenticateEndpoint.RequestTokenURL,
		AccessTokenURL:   twitter.AuthenticateEndpoint.AccessTokenURL,
		AuthorizationURL: twitter.AuthenticateEndpoint.AuthorizeURL,
		CallbackURL:      callbackURL,
		UserInfoURL:      "https://api.twitter.com/1.1/account/verify_credentials.json",
		IDPath:           "id_str",
	}
}

// FriendFeed returns the configuration for FriendFeed. FriendFeed exposes
// no identity endpoint, so its flow stops after the token exchange.
func FriendFeed(consumerKey, consumerSecret, callbackURL string) Config {
	return Config{
		Name:             "friendfeed",
		ConsumerKey:      consumerKey,
		ConsumerSecret:   consumerSecret,
		RequestTokenURL:  "https://friendfeed.com/account/oauth/request_token",
		AccessTokenURL:   "https://friendfeed.com/account/oauth/access_token",
		AuthorizationURL: "https://friendfeed.com/account/oauth/authorize",
		CallbackURL:      callbackURL,
	}
}

// Client implements provider.OAuthClient on top of dghubble/oauth1.
type Client struct {
	name        string
	config      *oauth1.Config
	userInfoURL string
	idPath      string
}

func New(cfg Config) (*Client, error) {
	if cfg.Name == "" || cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("oauth1 config missing name or consumer credentials")
	}
	if cfg.RequestTokenURL == "" || cfg.AccessTokenURL == "" || cfg.AuthorizationURL == "" {
		return nil, fmt.Errorf("oauth1 config for %s missing endpoints", cfg.Name)
	}
	if cfg.UserInfoURL != "" && cfg.IDPath == "" {
		return nil, fmt.Errorf("oauth1 config for %s has user info url without id path", cfg.Name)
	}

	return &Client{
		name: cfg.Name,
		config: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: cfg.RequestTokenURL,
				AuthorizeURL:    cfg.AuthorizationURL,
				AccessTokenURL:  cfg.AccessTokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		idPath:      cfg.IDPath,
	}, nil
}

// Name returns the service identifier used by the registry and stored on
// profiles.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) RequestToken() (provider.RequestToken, string, error) {
	token, secret, err := c.config.RequestToken()
	if err != nil {
		return provider.RequestToken{}, "", fmt.Errorf("%s request token: %w", c.name, err)
	}

	authURL, err := c.config.AuthorizationURL(token)
	if err != nil {
		return provider.RequestToken{}, "", fmt.Errorf("%s authorization url: %w", c.name, err)
	}

	return provider.RequestToken{Token: token, Secret: secret}, authURL.String(), nil
}

func (c *Client) ParseCallback(r *http.Request) (string, string, error) {
	token, verifier, err := oauth1.ParseAuthorizationCallback(r)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", provider.ErrInvalidCallback, err)
	}
	return token, verifier, nil
}

func (c *Client) Exchange(rt provider.RequestToken, verifier string) (provider.AccessToken, error) {
	key, secret, err := c.config.AccessToken(rt.Token, rt.Secret, verifier)
	if err != nil {
		return provider.AccessToken{}, fmt.Errorf("%w: %s access token: %v", provider.ErrInvalidCallback, c.name, err)
	}
	return provider.AccessToken{Key: key, Secret: secret}, nil
}

func (c *Client) UserInfo(ctx context.Context, at provider.AccessToken) (*auth.Identity, error) {
	if c.userInfoURL == "" {
		return nil, fmt.Errorf("%w: %s has no user info endpoint", provider.ErrNotImplemented, c.name)
	}

	httpClient := c.config.Client(ctx, oauth1.NewToken(at.Key, at.Secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s user info: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%s user info: read body: %w", c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s user info: HTTP %d", c.name, resp.StatusCode)
	}

	id := gjson.GetBytes(body, c.idPath)
	if !id.Exists() || id.String() == "" {
		return nil, fmt.Errorf("%s user info: no %q in response", c.name, c.idPath)
	}

	return &auth.Identity{
		Provider:     c.name,
		ExternalID:   id.String(),
		AccessKey:    at.Key,
		AccessSecret: at.Secret,
		Email:        gjson.GetBytes(body, "email").String(),
	}, nil
}
