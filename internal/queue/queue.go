package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"trackpoint/location-agent/internal/model"
	"trackpoint/location-agent/internal/store"
)

// Capacity bounds the number of undelivered samples kept for catch-up
// delivery. Inserting beyond it evicts the oldest entry first.
const Capacity = 100

const pendingKey = "pending_samples"

// Persistence is the key-value byte storage the queue serializes into.
type Persistence interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Queue is a bounded FIFO of pending position samples backed by durable
// storage. Every operation holds the queue lock for its full duration, so
// no caller can observe a partially updated queue even when uploads race.
type Queue struct {
	mu      sync.Mutex
	logger  *slog.Logger
	store   Persistence
	items   []model.PositionSample
	nextSeq int64
}

// New loads any previously persisted samples. A missing or corrupt backing
// record is treated as an empty queue, never as a fatal error.
func New(ctx context.Context, persistence Persistence, logger *slog.Logger) *Queue {
	q := &Queue{
		logger:  logger,
		store:   persistence,
		nextSeq: 1,
	}

	raw, err := persistence.Get(ctx, pendingKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("pending samples unreadable, starting empty", "error", err)
		}
		return q
	}

	var items []model.PositionSample
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("pending samples corrupt, starting empty", "error", err)
		return q
	}

	q.items = items
	for _, s := range items {
		if s.LocalSeq >= q.nextSeq {
			q.nextSeq = s.LocalSeq + 1
		}
	}

	return q
}

// Add appends a sample at the tail, evicting the oldest entry first when
// the queue is at capacity. Persistence failures propagate to the caller;
// the in-memory queue is only updated once the write succeeded.
func (q *Queue) Add(ctx context.Context, sample model.PositionSample) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.items
	if len(next) >= Capacity {
		next = next[1:]
	}

	sample.LocalSeq = q.nextSeq
	next = append(append([]model.PositionSample(nil), next...), sample)

	if err := q.persist(ctx, next); err != nil {
		return fmt.Errorf("queue add: %w", err)
	}

	q.items = next
	q.nextSeq++
	return nil
}

// List returns all pending samples, oldest first.
func (q *Queue) List() []model.PositionSample {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.PositionSample, len(q.items))
	copy(out, q.items)
	return out
}

// Count returns the number of pending samples.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all pending samples.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.persist(ctx, nil); err != nil {
		return fmt.Errorf("queue clear: %w", err)
	}

	q.items = nil
	return nil
}

// RemoveFirst drops the min(n, length) oldest samples, preserving the order
// of the remainder. Supports partial acknowledgement; the current uploader
// only clears after a full-batch success.
func (q *Queue) RemoveFirst(ctx context.Context, n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}

	next := append([]model.PositionSample(nil), q.items[n:]...)

	if err := q.persist(ctx, next); err != nil {
		return fmt.Errorf("queue remove first %d: %w", n, err)
	}

	q.items = next
	return nil
}

func (q *Queue) persist(ctx context.Context, items []model.PositionSample) error {
	if items == nil {
		items = []model.PositionSample{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode pending samples: %w", err)
	}

	return q.store.Set(ctx, pendingKey, data)
}
