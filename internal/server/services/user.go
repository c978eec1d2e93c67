// Package services contains server-side business logic. This file implements
// UserService, which handles registration, account maintenance and login.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

const maskedSecret = "********"

// AccessToken is the login result handed back to clients.
type AccessToken struct {
	AccessToken string
	TokenType   string
}

// UserService provides account operations:
// - Register: create users with a hashed password
// - Find, UpdatePassword, Delete: maintain stored accounts
// - Login: verify credentials, mint an access token and register it
type UserService struct {
	users           users.Repository
	tokens          tokens.Repository
	hasher          cryptox.Hasher
	codec           *auth.TokenCodec
	tokenTTLMinutes int
	log             logging.Logger

	registerLocks keyedMutex
	dummyDigest   string
}

// NewUserService constructs a UserService. The dummy digest used to keep
// unknown-user logins as slow as real ones is derived once here.
func NewUserService(u users.Repository, t tokens.Repository, h cryptox.Hasher, codec *auth.TokenCodec, tokenTTLMinutes int, log logging.Logger) (*UserService, error) {
	if log == nil {
		log = logging.Nop()
	}

	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := h.Hash(filler)
	if err != nil {
		return nil, err
	}

	return &UserService{
		users:           u,
		tokens:          t,
		hasher:          h,
		codec:           codec,
		tokenTTLMinutes: tokenTTLMinutes,
		log:             log.With("module", "users"),
		dummyDigest:     dummy,
	}, nil
}

// Register creates a new user. A taken username yields common.ErrorAlreadyExists,
// an empty username or password common.ErrorValidation.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}

	unlock := s.registerLocks.Lock(userName)
	defer unlock()

	s.log.Debug(ctx, "looking up user", "username", userName)
	_, err := s.users.GetUserByLogin(ctx, userName)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.internal(ctx, "error reading user", err)
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "inserting user", "username", userName, "password", maskedSecret)
	u, err := s.users.Create(ctx, &models.User{UserName: userName, HashedPassword: hashed})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, s.internal(ctx, "error creating user", err)
	}

	s.log.Info(ctx, "user registered", "username", userName)
	return u, nil
}

// Find returns the user with exactly this name, or nil when absent.
func (s *UserService) Find(ctx context.Context, userName string) (*models.User, error) {
	s.log.Debug(ctx, "looking up user", "username", userName)
	u, err := s.users.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, s.internal(ctx, "error reading user", err)
	}
	return u, nil
}

// UpdatePassword rehashes and stores a new password for an existing user.
func (s *UserService) UpdatePassword(ctx context.Context, userName, newPassword string) (*models.User, error) {
	hashed, err := s.hash(newPassword)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "updating user", "username", userName, "password", maskedSecret)
	u, err := s.users.UpdatePassword(ctx, userName, hashed)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user %q does not exist: %w", userName, common.ErrorNotFound)
		}
		return nil, s.internal(ctx, "error updating user", err)
	}
	return u, nil
}

// Delete removes the user if present.
func (s *UserService) Delete(ctx context.Context, userName string) error {
	s.log.Debug(ctx, "deleting user", "username", userName)
	if err := s.users.Delete(ctx, userName); err != nil {
		return s.internal(ctx, "error deleting user", err)
	}
	return nil
}

// Login verifies the password and, on success, returns a freshly issued and
// registered access token. Unknown users and wrong passwords both yield
// common.ErrorInvalidCredentials.
func (s *UserService) Login(ctx context.Context, userName, password string) (*AccessToken, error) {
	user, err := s.users.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Matches(password, s.dummyDigest)
			return nil, common.ErrorInvalidCredentials
		}
		return nil, s.internal(ctx, "error reading user", err)
	}

	if !s.hasher.Matches(password, user.HashedPassword) {
		return nil, common.ErrorInvalidCredentials
	}

	// jti keeps tokens issued to the same user within one second distinct.
	claims := map[string]any{
		auth.ClaimUsername: user.UserName,
		auth.ClaimTokenID:  uuid.NewString(),
	}
	token, err := s.codec.Issue(claims, s.tokenTTLMinutes)
	if err != nil {
		return nil, s.internal(ctx, "error issuing token", err)
	}

	if _, err := s.tokens.Create(ctx, token); err != nil {
		return nil, s.internal(ctx, "error registering token", err)
	}

	s.log.Info(ctx, "user logged in", "username", user.UserName)
	return &AccessToken{AccessToken: token, TokenType: common.TokenTypeBearer}, nil
}

func (s *UserService) hash(password string) (string, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, cryptox.ErrEmptyPassword) {
			return "", fmt.Errorf("%w: %w", common.ErrorValidation, err)
		}
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return hashed, nil
}

func (s *UserService) internal(ctx context.Context, msg string, err error) error {
	s.log.Error(ctx, msg, "error", err)
	return fmt.Errorf("%w: %v", common.ErrorInternal, err)
}
