// Package view holds the HTML templates rendered by the auth handlers.
package view

import (
	"embed"
	"html/template"
)

// Template names.
const (
	Setup         = "setup.html"
	Facebook      = "facebook.html"
	OAuthCallback = "oauthcallback.html"
	OpenID        = "openid.html"
	Login         = "login.html"
	Error         = "error.html"
)

//go:embed templates/*.html
var files embed.FS

// Templates parses the embedded templates. It panics on a malformed
// template since they are compiled into the binary.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(files, "templates/*.html"))
}
