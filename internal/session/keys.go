package session

// Keys of the values a social login flow keeps in the session.
// Every flow clears the keys it consumes.
const (
	KeyPendingUser    = "socialregistration_user"
	KeyPendingProfile = "socialregistration_profile"
	KeyNext           = "next"
	KeyOpenIDProvider = "openid_provider"

	KeyOAuthRequestToken  = "oauth_request_token"
	KeyOAuthRequestSecret = "oauth_request_secret"
	KeyOAuthAccessKey     = "oauth_access_key"
	KeyOAuthAccessSecret  = "oauth_access_secret"
)
