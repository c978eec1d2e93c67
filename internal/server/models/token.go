package models

import "time"

// Token is a registry entry for an issued access token. The raw token
// string is the natural key; its expiry lives inside the token itself.
type Token struct {
	ID        string
	Token     string
	CreatedAt time.Time
}
