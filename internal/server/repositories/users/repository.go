// Package users persists registered accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores users keyed by their exact, case-sensitive username.
type Repository interface {
	// Create inserts user, assigning ID and CreatedAt when empty.
	// A taken username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns common.ErrorNotFound when no user matches.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// UpdatePassword replaces the stored digest and returns the updated user,
	// or common.ErrorNotFound.
	UpdatePassword(ctx context.Context, login string, hashedPassword string) (*models.User, error)

	// Delete removes the user. Deleting an absent user is not an error.
	Delete(ctx context.Context, login string) error
}
