package auth

// Identity represents a verified external identity returned by a provider
// collaborator. It contains facts only, no decisions.
type Identity struct {
	Provider   string // e.g. "facebook", "twitter", "openid"
	ExternalID string // provider-scoped unique identifier

	// OAuth 1.0a providers hand back access-token material that is kept
	// on the linked profile.
	AccessKey    string
	AccessSecret string

	Email string // optional, used to prefill the setup form
}
