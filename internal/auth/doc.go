// Package auth issues and verifies the bearer tokens that authorise session
// actions over the HTTP API.
//
// There are no user accounts. A token names the client it was issued to
// (a wall display, a phone shortcut) and is signed HS256 with the single
// secret from security.jwt.secret. Tokens are minted with `surprise token`.
package auth
