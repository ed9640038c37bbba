package provider

import (
	"context"
	"net/http"
	"testing"

	"socialregistration/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedClient struct{ name string }

func (c namedClient) Name() string { return c.name }
func (c namedClient) RequestToken() (RequestToken, string, error) {
	return RequestToken{}, "", nil
}
func (c namedClient) ParseCallback(*http.Request) (string, string, error) { return "", "", nil }
func (c namedClient) Exchange(RequestToken, string) (AccessToken, error) {
	return AccessToken{}, nil
}
func (c namedClient) UserInfo(context.Context, AccessToken) (*auth.Identity, error) {
	return nil, ErrNotImplemented
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(namedClient{"twitter"}, namedClient{"friendfeed"})

	c, err := r.Get("twitter")
	require.NoError(t, err)
	assert.Equal(t, "twitter", c.Name())

	_, err = r.Get("myspace")
	assert.ErrorIs(t, err, ErrUnknown)

	assert.Equal(t, []string{"friendfeed", "twitter"}, r.Names())
}
