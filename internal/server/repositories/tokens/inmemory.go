package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// InMemoryRepository is a process-local registry. Entries vanish on restart,
// which logs every session out.
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[string]models.Token
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: make(map[string]models.Token)}
}

func (r *InMemoryRepository) Create(ctx context.Context, token string) (*models.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; ok {
		return nil, common.ErrorAlreadyExists
	}

	t := models.Token{ID: uuid.NewString(), Token: token, CreatedAt: time.Now().UTC()}
	r.tokens[token] = t

	return &t, nil
}

func (r *InMemoryRepository) Find(ctx context.Context, token string) (*models.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}

	return &t, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()

	return nil
}
