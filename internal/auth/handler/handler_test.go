package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"socialregistration/internal/auth"
	"socialregistration/internal/auth/account"
	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/auth/provider"
	"socialregistration/internal/metrics"
	"socialregistration/internal/middleware"
	"socialregistration/internal/session"
	"socialregistration/internal/view"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAccounts is an in-memory AccountStore that records every write.
type fakeAccounts struct {
	mu       sync.Mutex
	users    map[uuid.UUID]account.User
	profiles map[string]account.Profile // provider|external id
	creds    map[uuid.UUID]*credentials.Credential
	writes   int
	err      error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		users:    map[uuid.UUID]account.User{},
		profiles: map[string]account.Profile{},
		creds:    map[uuid.UUID]*credentials.Credential{},
	}
}

func profileKey(provider, externalID string) string {
	return provider + "|" + externalID
}

// seed stores a linked user without counting it as a write.
func (f *fakeAccounts) seed(username, provider, externalID string) account.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := account.User{ID: uuid.New(), Username: username}
	f.users[u.ID] = u
	f.profiles[profileKey(provider, externalID)] = account.Profile{
		ID:         uuid.New(),
		UserID:     u.ID,
		Provider:   provider,
		ExternalID: externalID,
	}
	return u
}

func (f *fakeAccounts) Create(_ context.Context, u *account.User, p *account.Profile, cred *credentials.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return account.ErrUsernameTaken
		}
	}
	if _, ok := f.profiles[profileKey(p.Provider, p.ExternalID)]; ok {
		return account.ErrProfileLinked
	}

	u.ID = uuid.New()
	p.ID = uuid.New()
	p.UserID = u.ID
	f.users[u.ID] = *u
	f.profiles[profileKey(p.Provider, p.ExternalID)] = *p
	if cred != nil {
		cred.UserID = u.ID
		f.creds[u.ID] = cred
	}
	f.writes++
	return nil
}

func (f *fakeAccounts) LinkProfile(_ context.Context, userID uuid.UUID, p *account.Profile) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.profiles[profileKey(p.Provider, p.ExternalID)]; ok {
		if existing.UserID != userID {
			return false, account.ErrProfileLinked
		}
		return false, nil
	}
	for _, existing := range f.profiles {
		if existing.UserID == userID && existing.Provider == p.Provider {
			return false, account.ErrProviderInUse
		}
	}

	p.ID = uuid.New()
	p.UserID = userID
	f.profiles[profileKey(p.Provider, p.ExternalID)] = *p
	f.writes++
	return true, nil
}

func (f *fakeAccounts) Profile(_ context.Context, userID uuid.UUID, provider string) (*account.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.profiles {
		if p.UserID == userID && p.Provider == provider {
			return &p, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccounts) UpdateProfileTokens(_ context.Context, profileID uuid.UUID, key, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for k, p := range f.profiles {
		if p.ID == profileID {
			p.OAuthAccessKey = key
			p.OAuthAccessSecret = secret
			f.profiles[k] = p
			f.writes++
			return nil
		}
	}
	return account.ErrNotFound
}

func (f *fakeAccounts) GetUser(_ context.Context, id uuid.UUID) (*account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &u, nil
}

func (f *fakeAccounts) profile(provider, externalID string) (account.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.profiles[profileKey(provider, externalID)]
	return p, ok
}

func (f *fakeAccounts) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// fakeResolver resolves identities against fakeAccounts.
type fakeResolver struct {
	accounts *fakeAccounts
	err      error
}

func (r *fakeResolver) Resolve(ctx context.Context, identity *auth.Identity) (*account.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.accounts.profile(identity.Provider, identity.ExternalID)
	if !ok {
		return nil, account.ErrNotFound
	}
	return r.accounts.GetUser(ctx, p.UserID)
}

type fakePasswords struct {
	mu        sync.Mutex
	passwords map[uuid.UUID]string
	usernames map[string]uuid.UUID
}

func newFakePasswords() *fakePasswords {
	return &fakePasswords{passwords: map[uuid.UUID]string{}, usernames: map[string]uuid.UUID{}}
}

func (p *fakePasswords) Authenticate(_ context.Context, username, password string) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.usernames[username]
	if !ok || p.passwords[id] != password {
		return uuid.Nil, credentials.ErrInvalidCredentials
	}
	return id, nil
}

type fakeVerifier struct {
	identity *auth.Identity
}

func (v *fakeVerifier) Name() string { return "facebook" }

func (v *fakeVerifier) VerifySession(*http.Request) (*auth.Identity, error) {
	if v.identity == nil {
		return nil, provider.ErrInvalidSession
	}
	id := *v.identity
	return &id, nil
}

// fakeOAuthClient hands out fixed tokens and accepts verifier "good".
type fakeOAuthClient struct {
	name          string
	requestErr    error
	identity      *auth.Identity
	userInfoErr   error
	exchangeCalls int
}

func (f *fakeOAuthClient) Name() string { return f.name }

func (f *fakeOAuthClient) RequestToken() (provider.RequestToken, string, error) {
	if f.requestErr != nil {
		return provider.RequestToken{}, "", f.requestErr
	}
	return provider.RequestToken{Token: "req-token", Secret: "req-secret"},
		"https://" + f.name + ".example.com/authorize?oauth_token=req-token", nil
}

func (f *fakeOAuthClient) ParseCallback(r *http.Request) (string, string, error) {
	q := r.URL.Query()
	if q.Get("oauth_token") == "" || q.Get("oauth_verifier") == "" {
		return "", "", provider.ErrInvalidCallback
	}
	return q.Get("oauth_token"), q.Get("oauth_verifier"), nil
}

func (f *fakeOAuthClient) Exchange(rt provider.RequestToken, verifier string) (provider.AccessToken, error) {
	f.exchangeCalls++
	if rt.Secret != "req-secret" || verifier != "good" {
		return provider.AccessToken{}, fmt.Errorf("%w: verifier rejected", provider.ErrInvalidCallback)
	}
	return provider.AccessToken{Key: "access-key", Secret: "access-secret"}, nil
}

func (f *fakeOAuthClient) UserInfo(_ context.Context, at provider.AccessToken) (*auth.Identity, error) {
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	id := *f.identity
	id.AccessKey = at.Key
	id.AccessSecret = at.Secret
	return &id, nil
}

// fakeOpenID accepts code "good" when state, nonce and verifier round
// tripped intact.
type fakeOpenID struct {
	providers map[string]string // name -> subject
	lastAuth  provider.AuthParams
}

func (f *fakeOpenID) Has(name string) bool {
	_, ok := f.providers[name]
	return ok
}

func (f *fakeOpenID) Names() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

func (f *fakeOpenID) AuthURL(_ context.Context, name string, params provider.AuthParams) (string, error) {
	f.lastAuth = params
	q := url.Values{
		"state":          {params.State},
		"nonce":          {params.Nonce},
		"redirect_uri":   {params.ReturnTo},
		"code_challenge": {params.CodeChallenge},
	}
	return "https://" + name + ".example.com/auth?" + q.Encode(), nil
}

func (f *fakeOpenID) Verify(_ context.Context, name string, params provider.VerifyParams) (*auth.Identity, error) {
	if params.Code != "good" || params.Nonce != f.lastAuth.Nonce || params.ReturnTo != f.lastAuth.ReturnTo {
		return nil, fmt.Errorf("%w: rejected", provider.ErrInvalidCallback)
	}
	return &auth.Identity{
		Provider:   "openid",
		ExternalID: "https://" + name + ".example.com#" + f.providers[name],
	}, nil
}

type harness struct {
	t         *testing.T
	router    *gin.Engine
	store     *session.RedisStore
	accounts  *fakeAccounts
	passwords *fakePasswords
	twitter   *fakeOAuthClient
	openid    *fakeOpenID
	facebook  *fakeVerifier
	registry  *prometheus.Registry
	cookies   map[string]*http.Cookie
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		t:         t,
		store:     session.NewRedisStore(client),
		accounts:  newFakeAccounts(),
		passwords: newFakePasswords(),
		twitter: &fakeOAuthClient{
			name:     "twitter",
			identity: &auth.Identity{Provider: "twitter", ExternalID: "42"},
		},
		openid:   &fakeOpenID{providers: map[string]string{"example": "sub-1"}},
		facebook: &fakeVerifier{},
		registry: prometheus.NewRegistry(),
		cookies:  map[string]*http.Cookie{},
	}

	friendfeed := &fakeOAuthClient{name: "friendfeed", userInfoErr: provider.ErrNotImplemented}

	deps := Deps{
		Facebook:  h.facebook,
		OAuth:     provider.NewRegistry(h.twitter, friendfeed),
		OpenID:    h.openid,
		Resolver:  &fakeResolver{accounts: h.accounts},
		Accounts:  h.accounts,
		Passwords: h.passwords,
		Metrics:   metrics.New(h.registry),
		URLs: URLs{
			Site:          "https://social.example.com",
			Login:         "/accounts/login",
			LoginRedirect: "/",
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	handler := NewHandler(deps)

	r := gin.New()
	r.SetHTMLTemplate(view.Templates())
	r.Use(middleware.NewSessionLoader(h.store, time.Hour, session.CookieOptions{Secure: true}).Handler())
	handler.RegisterRoutes(r)
	h.router = r

	return h
}

// do sends a request carrying the cookies collected so far.
func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	h.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range h.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(h.cookies, c.Name)
			continue
		}
		h.cookies[c.Name] = c
	}
	return rec
}

// session loads the server-side state behind the current session cookie.
func (h *harness) session() *session.Session {
	h.t.Helper()

	c, ok := h.cookies[session.CookieName]
	require.True(h.t, ok, "no session cookie")

	sess, err := h.store.Get(context.Background(), c.Value)
	require.NoError(h.t, err)
	require.NotNil(h.t, sess, "session not persisted")
	return sess
}

// seedSession stores sess and presents it on following requests.
func (h *harness) seedSession(sess *session.Session) {
	h.t.Helper()

	require.NoError(h.t, h.store.Create(context.Background(), *sess))
	h.cookies[session.CookieName] = &http.Cookie{Name: session.CookieName, Value: sess.SessionID}
}

func newSession(t *testing.T) *session.Session {
	t.Helper()

	sess, err := session.New(time.Hour)
	require.NoError(t, err)
	return sess
}
