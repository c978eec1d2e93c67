package tokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldID        = "id"
	fieldCreatedAt = "created_at"
)

// createTokenScript writes the entry hash only when the key is free.
// Entries carry no TTL.
const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "created_at", ARGV[2])
return 1
`

var createTokenLua = redis.NewScript(createTokenScript)

// RedisRepository keeps registry entries as hashes under
// "<prefix>token:<raw token>".
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisRepository constructs a registry over rdb. prefix namespaces the keys.
func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + "token:" + token
}

func (r *RedisRepository) Create(ctx context.Context, token string) (*models.Token, error) {
	t := &models.Token{ID: uuid.NewString(), Token: token, CreatedAt: time.Now().UTC()}

	created, err := createTokenLua.Run(ctx, r.rdb,
		[]string{r.key(token)},
		t.ID, strconv.FormatInt(t.CreatedAt.UnixNano(), 10),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if created == 0 {
		return nil, common.ErrorAlreadyExists
	}

	return t, nil
}

func (r *RedisRepository) Find(ctx context.Context, token string) (*models.Token, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	id, ok := vals[fieldID]
	if !ok {
		return nil, common.ErrorNotFound
	}

	t := &models.Token{ID: id, Token: token}
	if ns, err := strconv.ParseInt(vals[fieldCreatedAt], 10, 64); err == nil {
		t.CreatedAt = time.Unix(0, ns).UTC()
	}

	return t, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
