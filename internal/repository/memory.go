package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go-pharmacy-catalog/internal/model"
)

// MemoryUserRepository keeps users in process memory. It backs
// STORE_DRIVER=memory and the package tests of the layers above.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byUsername map[string]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byUsername: map[string]model.User{}}
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	key := usernameKey(u.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[key]; exists {
		return model.ErrDuplicateUsername
	}
	r.byUsername[key] = u
	return nil
}

func (r *MemoryUserRepository) FindByUsernameAndRole(_ context.Context, username string, role model.Role) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.byUsername[usernameKey(username)]
	if !exists || u.Role != role {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUsername), nil
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]model.Product
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: map[string]model.Product{}}
}

func (r *MemoryProductRepository) Create(_ context.Context, p model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.ID] = p
	return nil
}

func (r *MemoryProductRepository) Get(_ context.Context, id string) (model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.products[id]
	if !exists {
		return model.Product{}, model.ErrProductNotFound
	}
	return p, nil
}

func (r *MemoryProductRepository) List(_ context.Context) ([]model.Product, error) {
	r.mu.RLock()
	products := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	r.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (r *MemoryProductRepository) Update(_ context.Context, id string, mutate func(*model.Product) error) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before, exists := r.products[id]
	if !exists {
		return model.Product{}, model.ErrProductNotFound
	}

	after := before
	if err := mutate(&after); err != nil {
		return model.Product{}, err
	}
	r.products[id] = after
	return before, nil
}

func (r *MemoryProductRepository) Delete(_ context.Context, id string) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.products[id]
	if !exists {
		return model.Product{}, model.ErrProductNotFound
	}
	delete(r.products, id)
	return p, nil
}
