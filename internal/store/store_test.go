package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func TestGetMissingKey(t *testing.T) {
	is := is.New(t)
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "absent")
	is.True(errors.Is(err, ErrNotFound))
}

func TestSetGetRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := openTestStore(t)

	is.NoErr(s.Set(ctx, "pending", []byte(`[{"latitude":1}]`)))

	value, err := s.Get(ctx, "pending")
	is.NoErr(err)
	is.Equal(string(value), `[{"latitude":1}]`)
}

func TestSetOverwrites(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := openTestStore(t)

	is.NoErr(s.Set(ctx, "k", []byte("first")))
	is.NoErr(s.Set(ctx, "k", []byte("second")))

	value, err := s.Get(ctx, "k")
	is.NoErr(err)
	is.Equal(string(value), "second")
}

func TestDelete(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := openTestStore(t)

	is.NoErr(s.Set(ctx, "k", []byte("v")))
	is.NoErr(s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	is.True(errors.Is(err, ErrNotFound))

	// Deleting an absent key is fine.
	is.NoErr(s.Delete(ctx, "k"))
}

func TestDeviceIDIsStable(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.DeviceID(ctx)
	is.NoErr(err)
	is.True(first != "")

	second, err := s.DeviceID(ctx)
	is.NoErr(err)
	is.Equal(first, second)
}

func TestUninitializedStoreGuards(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	var s Store
	_, err := s.Get(ctx, "k")
	is.True(err != nil)
	is.True(s.Set(ctx, "k", nil) != nil)
	is.True(s.Delete(ctx, "k") != nil)
	is.NoErr(s.Close())
}
