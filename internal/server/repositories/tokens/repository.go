// Package tokens is the token registry: the set of issued access tokens
// that are still considered live. Removing an entry revokes the token
// regardless of its embedded expiry.
package tokens

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for registering, looking up and revoking
// issued tokens.
type Repository interface {
	// Create registers token. Registering the same token twice yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, token string) (*models.Token, error)

	// Find returns the registry entry for token, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.Token, error)

	// Delete removes token. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) error
}
