package redisclient

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointments/internal/appointment"
)

func TestErrLockNotAcquiredIsSlotBeingBooked(t *testing.T) {
	if !errors.Is(ErrLockNotAcquired, appointment.ErrSlotBeingBooked) {
		t.Fatalf("ErrLockNotAcquired should match appointment.ErrSlotBeingBooked")
	}
}

func testClient(t *testing.T) *SlotLocker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := Connect(context.Background(), Options{Addr: addr})
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotLocker(client, 2*time.Second)
}

func TestSlot_Integration(t *testing.T) {
	l := testClient(t)
	s := NewSlot(l.client, "test:"+uuid.NewString()+":")
	ctx := context.Background()

	if _, err := s.Get(ctx, "clinic"); !errors.Is(err, appointment.ErrSlotEmpty) {
		t.Fatalf("Get error = %v, want %v", err, appointment.ErrSlotEmpty)
	}
	if err := s.Put(ctx, "clinic", []byte(`[]`)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, err := s.Get(ctx, "clinic")
	if err != nil || string(got) != `[]` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	t.Cleanup(func() { l.client.Del(context.Background(), s.prefix+"clinic") })
}

func TestSlotLocker_Integration(t *testing.T) {
	l := testClient(t)
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	err := l.WithSlotLock(ctx, key, func(ctx context.Context) error {
		inner := l.WithSlotLock(ctx, key, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("nested lock error = %v, want %v", inner, ErrLockNotAcquired)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSlotLock error: %v", err)
	}

	// released after fn returns
	if err := l.WithSlotLock(ctx, key, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("relock error: %v", err)
	}
}
