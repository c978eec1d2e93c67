package tokens

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisRepository(rdb, "test:"), mr
}

func registries(t *testing.T) map[string]Repository {
	redisRepo, _ := newRedisRepo(t)
	return map[string]Repository{
		"memory": NewInMemoryRepository(),
		"redis":  redisRepo,
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	for name, repo := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Find(ctx, "tok")
			require.ErrorIs(t, err, common.ErrorNotFound)

			created, err := repo.Create(ctx, "tok")
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "tok", created.Token)

			found, err := repo.Find(ctx, "tok")
			require.NoError(t, err)
			assert.Equal(t, created.ID, found.ID)
			assert.Equal(t, "tok", found.Token)
			assert.True(t, created.CreatedAt.Equal(found.CreatedAt))

			_, err = repo.Create(ctx, "tok")
			assert.ErrorIs(t, err, common.ErrorAlreadyExists)

			require.NoError(t, repo.Delete(ctx, "tok"))
			require.NoError(t, repo.Delete(ctx, "tok"), "delete is idempotent")

			_, err = repo.Find(ctx, "tok")
			assert.ErrorIs(t, err, common.ErrorNotFound)
		})
	}
}

func TestRegistry_ConcurrentCreateOneWinner(t *testing.T) {
	for name, repo := range registries(t) {
		t.Run(name, func(t *testing.T) {
			var mu sync.Mutex
			wins := 0

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := repo.Create(context.Background(), "same"); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, wins)
		})
	}
}

func TestRedisRepository_KeyLayoutAndNoTTL(t *testing.T) {
	repo, mr := newRedisRepo(t)

	created, err := repo.Create(context.Background(), "abc.def.ghi")
	require.NoError(t, err)

	key := "test:token:abc.def.ghi"
	require.True(t, mr.Exists(key))
	assert.Equal(t, created.ID, mr.HGet(key, "id"))
	assert.Equal(t, fmt.Sprint(created.CreatedAt.UnixNano()), mr.HGet(key, "created_at"))
	assert.Zero(t, mr.TTL(key))
}

func TestRedisRepository_Unavailable(t *testing.T) {
	repo, mr := newRedisRepo(t)
	mr.Close()

	ctx := context.Background()
	_, err := repo.Create(ctx, "t")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Find(ctx, "t")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)

	assert.Error(t, repo.Delete(ctx, "t"))
}
