package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/matryer/is"

	"trackpoint/location-agent/internal/model"
	"trackpoint/location-agent/internal/store"
)

type memStore struct {
	data       map[string][]byte
	failWrites bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	if m.failWrites {
		return errors.New("disk full")
	}
	m.data[key] = value
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAt(lat, lon float64) model.PositionSample {
	return model.PositionSample{
		Latitude:   lat,
		Longitude:  lon,
		ObservedAt: "2024-01-15T12:00:00Z",
	}
}

func TestAddAndList(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	is.NoErr(q.Add(ctx, sampleAt(1, 1)))
	is.NoErr(q.Add(ctx, sampleAt(2, 2)))
	is.NoErr(q.Add(ctx, sampleAt(3, 3)))

	items := q.List()
	is.Equal(len(items), 3)
	is.Equal(items[0].Latitude, 1.0)
	is.Equal(items[2].Latitude, 3.0)
	is.Equal(q.Count(), 3)
}

func TestAddAssignsLocalSequence(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	is.NoErr(q.Add(ctx, sampleAt(1, 1)))
	is.NoErr(q.Add(ctx, sampleAt(2, 2)))

	items := q.List()
	is.Equal(items[0].LocalSeq, int64(1))
	is.Equal(items[1].LocalSeq, int64(2))
}

func TestCapacityEvictsOldest(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	for i := 0; i < Capacity+10; i++ {
		is.NoErr(q.Add(ctx, sampleAt(float64(i%90), float64(i))))
	}

	is.Equal(q.Count(), Capacity)

	items := q.List()
	// The most recent Capacity inserts survive in original relative order.
	is.Equal(items[0].Longitude, 10.0)
	is.Equal(items[Capacity-1].Longitude, float64(Capacity+9))
}

func TestClear(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	is.NoErr(q.Add(ctx, sampleAt(1, 1)))
	is.NoErr(q.Add(ctx, sampleAt(2, 2)))

	is.NoErr(q.Clear(ctx))
	is.Equal(q.Count(), 0)
	is.Equal(len(q.List()), 0)
}

func TestRemoveFirst(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	for i := 1; i <= 5; i++ {
		is.NoErr(q.Add(ctx, sampleAt(float64(i), float64(i))))
	}

	is.NoErr(q.RemoveFirst(ctx, 2))
	items := q.List()
	is.Equal(len(items), 3)
	is.Equal(items[0].Latitude, 3.0)
	is.Equal(items[2].Latitude, 5.0)

	// Removing more than the queue holds drains it without error.
	is.NoErr(q.RemoveFirst(ctx, 10))
	is.Equal(q.Count(), 0)

	is.NoErr(q.RemoveFirst(ctx, 0))
	is.Equal(q.Count(), 0)
}

func TestCorruptBackingRecordStartsEmpty(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	backing := newMemStore()
	backing.data[pendingKey] = []byte("{not json")

	q := New(ctx, backing, discardLogger())
	is.Equal(q.Count(), 0)
	is.Equal(len(q.List()), 0)
}

func TestWriteFailurePropagatesAndRollsBack(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	backing := newMemStore()
	q := New(ctx, backing, discardLogger())

	is.NoErr(q.Add(ctx, sampleAt(1, 1)))

	backing.failWrites = true
	err := q.Add(ctx, sampleAt(2, 2))
	is.True(err != nil)

	// The in-memory queue stays consistent with durable state.
	is.Equal(q.Count(), 1)

	is.True(q.Clear(ctx) != nil)
	is.Equal(q.Count(), 1)

	is.True(q.RemoveFirst(ctx, 1) != nil)
	is.Equal(q.Count(), 1)
}

func TestRestoreFromPersistedState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	backing := newMemStore()

	first := New(ctx, backing, discardLogger())
	is.NoErr(first.Add(ctx, sampleAt(1, 1)))
	is.NoErr(first.Add(ctx, sampleAt(2, 2)))

	second := New(ctx, backing, discardLogger())
	is.Equal(second.Count(), 2)

	// Sequence numbering continues past the restored entries.
	is.NoErr(second.Add(ctx, sampleAt(3, 3)))
	items := second.List()
	is.Equal(items[2].LocalSeq, int64(3))
}

func TestBoundHoldsUnderManyInsertions(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())

	for i := 0; i < 1000; i++ {
		is.NoErr(q.Add(ctx, sampleAt(0, 0)))
		if q.Count() > Capacity {
			is.Fail() // count must never exceed capacity
		}
	}
	is.Equal(q.Count(), Capacity)
}

func TestListReturnsACopy(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	q := New(ctx, newMemStore(), discardLogger())
	is.NoErr(q.Add(ctx, sampleAt(1, 1)))

	items := q.List()
	items[0].Latitude = 99

	is.Equal(q.List()[0].Latitude, 1.0)
}
