// Package models defines server-side data models persisted by the repositories.
package models

import "time"

// User is a registered account. HashedPassword is the encoded digest
// produced by the configured password hasher, never the plaintext.
type User struct {
	ID             string
	UserName       string
	HashedPassword string
	CreatedAt      time.Time
}
