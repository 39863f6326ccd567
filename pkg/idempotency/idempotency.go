package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/redis"
)

// Manager tracks processed job IDs per consumer using Redis SETNX with a TTL.
// Keys follow the `sc:idempotency:job:processed:<consumer>:<job_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks jobs as processed for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the job has already been processed and
// otherwise marks it as processed with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, jobID uuid.UUID) (bool, error) {
	key, err := m.processedKey(consumer, jobID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the processed marker so a redelivery is handled again.
func (m *Manager) Delete(ctx context.Context, consumer string, jobID uuid.UUID) error {
	key, err := m.processedKey(consumer, jobID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// Claim marks an arbitrary scoped key once. It returns true for the first caller
// within the TTL and false for everyone after.
func (m *Manager) Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	if scope == "" || id == "" {
		return false, errors.New("claim scope and id are required")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.store.SetNX(ctx, m.store.IdempotencyKey("claim:"+scope, id), "1", ttl)
}

func (m *Manager) processedKey(consumer string, jobID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if jobID == uuid.Nil {
		return "", errors.New("job id is required")
	}
	scope := fmt.Sprintf("job:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, jobID.String()), nil
}
