// Package auth drives the provider authentication handshake over HTTP: the
// Filter completes a handshake via a per-provider AuthenticationService,
// signs in or provisions a local user through the connection repository, or
// links an additional provider account to the authenticated session.
package auth
