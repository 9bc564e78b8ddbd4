package repository

import (
	"context"
	"sync"
	"time"

	"tablebook/internal/models"
)

type MemoryStateRepository struct {
	states     sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		ttl: ttl,
	}
}

type stateEntry struct {
	state     *models.GuestState
	expiresAt time.Time
}

func (r *MemoryStateRepository) GetState(ctx context.Context, token string) (*models.GuestState, error) {
	val, ok := r.states.Load(token)
	if !ok {
		return nil, nil
	}
	entry := val.(*stateEntry)
	if time.Now().After(entry.expiresAt) {
		r.states.Delete(token)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryStateRepository) SetState(ctx context.Context, state *models.GuestState) error {
	r.states.Store(state.Token, &stateEntry{
		state:     state,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryStateRepository) ClearState(ctx context.Context, token string) error {
	r.states.Delete(token)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, token string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(token)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(token, entry)
	return entry.count <= limit, nil
}
