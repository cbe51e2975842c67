package store

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that InMemoryGreetingRepo implements GreetingRepo.
var _ GreetingRepo = (*InMemoryGreetingRepo)(nil)

// InMemoryGreetingRepo is a mutex-guarded, process-local GreetingRepo.
type InMemoryGreetingRepo struct {
	mu      sync.Mutex
	greeted map[string]time.Time
}

// NewInMemoryGreetingRepo creates an empty in-memory greeting repository.
func NewInMemoryGreetingRepo() *InMemoryGreetingRepo {
	return &InMemoryGreetingRepo{greeted: make(map[string]time.Time)}
}

func (r *InMemoryGreetingRepo) HasGreeted(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.greeted[userID]
	return ok, nil
}

func (r *InMemoryGreetingRepo) MarkGreeted(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.greeted[userID]; !ok {
		r.greeted[userID] = time.Now()
	}
	return nil
}

func (r *InMemoryGreetingRepo) GreetIfNeeded(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.greeted[userID]; ok {
		return false, nil
	}
	r.greeted[userID] = time.Now()
	return true, nil
}

func (r *InMemoryGreetingRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.greeted), nil
}
