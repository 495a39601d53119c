package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/bloodbank-workflow/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisLockerRunsFnAndReleases(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestMiniredis(t)
	locker, err := NewRedisLocker(rdb, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	called := false
	err = locker.WithLock(context.Background(), "sweep:appointments", func(ctx context.Context) error {
		called = true
		if !mr.Exists("lock:sweep:appointments") {
			t.Fatal("lock key should exist while fn runs")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	if !called {
		t.Fatal("fn should be called")
	}
	if mr.Exists("lock:sweep:appointments") {
		t.Fatal("lock key should be deleted after fn returns")
	}
}

func TestRedisLockerHeldElsewhere(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestMiniredis(t)
	if err := mr.Set("lock:sweep:appointments", "other-replica"); err != nil {
		t.Fatalf("mr.Set() error = %v", err)
	}

	locker, err := NewRedisLocker(rdb, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	err = locker.WithLock(context.Background(), "sweep:appointments", func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	if !errors.Is(err, lock.ErrNotAcquired) {
		t.Fatalf("WithLock() error = %v, want %v", err, lock.ErrNotAcquired)
	}

	got, err := mr.Get("lock:sweep:appointments")
	if err != nil || got != "other-replica" {
		t.Fatalf("foreign lock = %q, %v; want untouched", got, err)
	}
}

func TestRedisLockerDoesNotDeleteSuccessorLock(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestMiniredis(t)
	locker, err := NewRedisLocker(rdb, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	err = locker.WithLock(context.Background(), "sweep:appointments", func(ctx context.Context) error {
		// Simulate expiry followed by another replica taking over.
		return mr.Set("lock:sweep:appointments", "successor")
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}

	got, err := mr.Get("lock:sweep:appointments")
	if err != nil || got != "successor" {
		t.Fatalf("successor lock = %q, %v; want kept", got, err)
	}
}

func TestRedisLockerPropagatesFnError(t *testing.T) {
	t.Parallel()

	_, rdb := newTestMiniredis(t)
	locker, err := NewRedisLocker(rdb, 0)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	if locker.ttl != defaultLockTTL {
		t.Fatalf("ttl = %v, want %v", locker.ttl, defaultLockTTL)
	}

	boom := errors.New("boom")
	err = locker.WithLock(context.Background(), "expire:batches", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithLock() error = %v, want %v", err, boom)
	}
}

func newTestMiniredis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return mr, rdb
}
