// Package server provides the HTTP API: the Google sign-in flow, the Gmail
// read routes, and the LLM summarization route.
//
// # Key Components
//
// Server owns the route table and per-request wiring. Each Gmail route
// resolves the caller's session, builds a wire-level Gmail client around the
// session's OAuth credentials, and maps pipeline errors onto the JSON error
// shape {"detail": "..."}.
//
// SessionManager keeps sessions server-side in memory. The browser only
// holds an HMAC-signed session ID cookie, so session contents (tokens,
// identity) never leave the process.
//
// MetricsServer serves Prometheus metrics on a dedicated port, and
// HealthChecker provides liveness and readiness probes.
//
// # Security Features
//
//   - HTTPS required for the external base URL (localhost exempt for
//     development)
//   - State parameter required on the OAuth callback for CSRF protection
//   - Session cookies are HttpOnly, SameSite Lax, and HMAC-signed
//   - Gmail routes require the gmail.readonly scope, checked per request
//   - Audit logging for route invocations with PII-gated user fields
package server
