// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// TokenTypeBearer is the token_type reported to clients on login.
const TokenTypeBearer = "bearer"
