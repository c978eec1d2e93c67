package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.NotEqual(t, "pw1", u.HashedPassword)
	assert.Len(t, u.HashedPassword, 64)

	stored, err := f.svc.Find(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, u.ID, stored.ID)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	stored, err := f.svc.Find(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, cryptox.NewSHA256Hasher().Matches("pw1", stored.HashedPassword), "original record untouched")
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Register(context.Background(), "bob", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.ErrorIs(t, err, cryptox.ErrEmptyPassword)
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), "racer", "pw")
			if err == nil {
				ok.Add(1)
			} else if assert.ErrorIs(t, err, common.ErrorAlreadyExists) {
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 19, dup.Load())
	assert.Zero(t, f.svc.registerLocks.size())
}

func TestRegister_StoreRaceMapsToAlreadyExists(t *testing.T) {
	f := newFixture(t)
	repo := &failingUsers{Repository: f.users, createErr: common.ErrorAlreadyExists}
	svc, err := NewUserService(repo, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_BackendErrors(t *testing.T) {
	f := newFixture(t)

	repo := &failingUsers{Repository: f.users, getErr: errBackend}
	svc, err := NewUserService(repo, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Zero(t, repo.creates, "no insert after a failed read")

	repo = &failingUsers{Repository: f.users, createErr: errBackend}
	svc, err = NewUserService(repo, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestFind_Absent(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.Find(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestFind_CaseSensitive(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), "Alice", "pw")
	require.NoError(t, err)

	u, err := f.svc.Find(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdatePassword(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = f.svc.Register(ctx, "alice", "old")
	require.NoError(t, err)

	u, err := f.svc.UpdatePassword(ctx, "alice", "new")
	require.NoError(t, err)
	assert.True(t, cryptox.NewSHA256Hasher().Matches("new", u.HashedPassword))

	_, err = f.svc.Login(ctx, "alice", "old")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
	_, err = f.svc.Login(ctx, "alice", "new")
	assert.NoError(t, err)

	_, err = f.svc.UpdatePassword(ctx, "alice", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "alice"))
	require.NoError(t, f.svc.Delete(ctx, "alice"))

	u, err := f.svc.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, u)

	repo := &failingUsers{Repository: f.users, deleteErr: errBackend}
	svc, err := NewUserService(repo, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, "alice"), common.ErrorInternal)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	tok, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	_, err = f.tokens.Find(ctx, tok.AccessToken)
	require.NoError(t, err, "token is registered")

	claims, err := f.codec.Decode(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims[auth.ClaimUsername])
	assert.EqualValues(t, f.clock.Now().Add(30*time.Minute).Unix(), claims[auth.ClaimExpires])
}

func TestLogin_SameSecondTokensAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	laptop, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	phone, err := f.svc.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	require.NotEqual(t, laptop.AccessToken, phone.AccessToken)

	claims, err := f.codec.Decode(laptop.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, claims[auth.ClaimTokenID])

	require.NoError(t, f.sessions.Logout(ctx, "Bearer "+laptop.AccessToken))

	_, err = f.sessions.Verify(ctx, "Bearer "+laptop.AccessToken)
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)

	sess, err := f.sessions.Verify(ctx, "Bearer "+phone.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
}

func TestLogin_TokenCollisionIsAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	svc, err := NewUserService(f.users, &failingTokens{Repository: f.tokens, createErr: common.ErrorAlreadyExists}, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_NoEnumeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, "alice", "nope")
	_, unknownUser := f.svc.Login(ctx, "mallory", "pw1")

	assert.ErrorIs(t, wrongPassword, common.ErrorInvalidCredentials)
	assert.ErrorIs(t, unknownUser, common.ErrorInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLogin_BackendErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	repo := &failingUsers{Repository: f.users, getErr: errBackend}
	svc, err := NewUserService(repo, f.tokens, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, common.ErrorInternal)

	reg := &failingTokens{Repository: f.tokens, createErr: errBackend}
	svc, err = NewUserService(f.users, reg, cryptox.NewSHA256Hasher(), f.codec, 30, nil)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_WithArgon2id(t *testing.T) {
	clock := newFakeClock()
	codec := newCodec(t, clock)
	svc, err := NewUserService(users.NewInMemoryRepository(), tokens.NewInMemoryRepository(), cryptox.NewArgon2idHasher(), codec, 5, nil)
	require.NoError(t, err)

	ctx := context.Background()
	u, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, u.HashedPassword, "$argon2id$")

	_, err = svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

type errHasher struct{}

func (errHasher) Hash(string) (string, error) { return "", cryptox.ErrUnknownHasher }
func (errHasher) Matches(string, string) bool { return false }

func TestNewUserService_HasherFailure(t *testing.T) {
	_, err := NewUserService(users.NewInMemoryRepository(), tokens.NewInMemoryRepository(), errHasher{}, nil, 1, nil)
	assert.Error(t, err)
}

var _ users.Repository = (*failingUsers)(nil)
