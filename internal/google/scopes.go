package google

import "strings"

// ScopeGmailReadonly is the only Gmail grant this service ever asks for.
// Every Gmail route requires it; nothing here can modify a mailbox.
const ScopeGmailReadonly = "https://www.googleapis.com/auth/gmail.readonly"

// UserinfoEndpoint is the OpenID Connect userinfo endpoint used to resolve
// the signed-in user's identity after the token exchange.
const UserinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"

// LoginScopes are the Google OAuth scopes requested during the web sign-in
// flow. The OpenID Connect scopes identify the user; gmail.readonly grants
// read access to their mailbox.
var LoginScopes = []string{
	"openid",
	"email",
	"profile",
	ScopeGmailReadonly,
}

// HasGmailReadonly reports whether a space-separated scope string, as
// returned by Google's token endpoint, includes gmail.readonly.
func HasGmailReadonly(scopes string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == ScopeGmailReadonly {
			return true
		}
	}
	return false
}
