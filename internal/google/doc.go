// Package google provides OAuth2 authentication for the Gmail API.
//
// Two flows are supported: the browser sign-in flow used by the web server,
// where tokens live in the session store, and an out-of-band CLI flow that
// caches the token on disk for the fetch command.
//
// Both flows request the same scopes; gmail.readonly is the only Gmail grant.
package google
