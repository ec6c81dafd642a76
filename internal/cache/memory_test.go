package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_SetGetDelete(t *testing.T) {
	t.Parallel()
	c := NewMemory("test", 0)
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("miss debe ser ErrNotFound, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tras Delete debe ser ErrNotFound, got %v", err)
	}
}

func TestMemory_TTLExpires(t *testing.T) {
	t.Parallel()
	c := NewMemory("", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("key expirada debe ser ErrNotFound, got %v", err)
	}
}

func TestMemory_Stats(t *testing.T) {
	t.Parallel()
	c := NewMemory("", 0)
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", 0)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "nope")

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Driver != "memory" || st.Keys != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Driver: "cassandra"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
