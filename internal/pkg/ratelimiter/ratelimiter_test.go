package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	t.Run("enforces the per-domain cap", func(t *testing.T) {
		l := New(1)

		p1, err := l.Acquire(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}

		if _, ok := l.TryAcquire("example.com"); ok {
			t.Errorf("expected second TryAcquire to fail while first permit held")
		}

		p1.Release()

		p2, ok := l.TryAcquire("example.com")
		if !ok {
			t.Fatalf("expected TryAcquire to succeed after release")
		}
		p2.Release()
	})

	t.Run("different domains do not contend", func(t *testing.T) {
		l := New(1)
		p1, _ := l.Acquire(context.Background(), "a.com")
		defer p1.Release()

		p2, ok := l.TryAcquire("b.com")
		if !ok {
			t.Fatalf("expected independent domain permit to succeed")
		}
		p2.Release()
	})

	t.Run("Acquire respects context cancellation", func(t *testing.T) {
		l := New(1)
		p1, _ := l.Acquire(context.Background(), "c.com")
		defer p1.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if _, err := l.Acquire(ctx, "c.com"); err == nil {
			t.Errorf("expected context deadline error")
		}
	})
}
