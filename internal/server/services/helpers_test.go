package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCodec(t *testing.T, clock *fakeClock) *auth.TokenCodec {
	t.Helper()
	c, err := auth.NewTokenCodec([]byte("test-secret"), "HS256", auth.WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

type fixture struct {
	clock    *fakeClock
	codec    *auth.TokenCodec
	users    *users.InMemoryRepository
	tokens   *tokens.InMemoryRepository
	svc      *UserService
	sessions *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:  newFakeClock(),
		users:  users.NewInMemoryRepository(),
		tokens: tokens.NewInMemoryRepository(),
	}
	f.codec = newCodec(t, f.clock)

	svc, err := NewUserService(f.users, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	f.svc = svc
	f.sessions = NewSessionService(f.tokens, f.codec, nil, nil)
	return f
}

// failingUsers wraps a repository and fails selected calls.
type failingUsers struct {
	users.Repository
	getErr    error
	createErr error
	updateErr error
	deleteErr error
	creates   int
}

func (f *failingUsers) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Repository.GetUserByLogin(ctx, login)
}

func (f *failingUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Repository.Create(ctx, u)
}

func (f *failingUsers) UpdatePassword(ctx context.Context, login, hashed string) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Repository.UpdatePassword(ctx, login, hashed)
}

func (f *failingUsers) Delete(ctx context.Context, login string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Repository.Delete(ctx, login)
}

// failingTokens wraps a registry and fails selected calls.
type failingTokens struct {
	tokens.Repository
	createErr error
	findErr   error
	deleteErr error
	finds     int
	deletes   int
}

func (f *failingTokens) Create(ctx context.Context, token string) (*models.Token, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Repository.Create(ctx, token)
}

func (f *failingTokens) Find(ctx context.Context, token string) (*models.Token, error) {
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.Find(ctx, token)
}

func (f *failingTokens) Delete(ctx context.Context, token string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Repository.Delete(ctx, token)
}
