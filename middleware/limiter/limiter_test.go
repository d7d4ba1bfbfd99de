package limiter

import (
	"context"
	"errors"
	"testing"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/middleware"
)

func pass(*middleware.Context) error { return nil }

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst without waiting", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 2)
		for i := range 2 {
			if err := limiter.Execute(middleware.NewContext(context.Background(), "Tester", &backend.Request{}), pass); err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
		}
		if limiter.limiter.Tokens() >= 1 {
			t.Errorf("bucket should be drained, has %.2f tokens", limiter.limiter.Tokens())
		}
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 1)
		if err := limiter.Execute(middleware.NewContext(context.Background(), "Developer", &backend.Request{}), pass); err != nil {
			t.Fatalf("first call: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := limiter.Execute(middleware.NewContext(ctx, "Developer", &backend.Request{}), func(*middleware.Context) error {
			called = true
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if called {
			t.Error("next must not run after a failed wait")
		}
	})

	t.Run("clamps burst", func(t *testing.T) {
		limiter := NewRateLimiter(1, 0)
		if limiter.limiter.Burst() != 1 {
			t.Errorf("expected burst 1, got %d", limiter.limiter.Burst())
		}
	})
}

func TestName(t *testing.T) {
	if got := NewRateLimiter(1, 1).Name(); got != "RateLimiter" {
		t.Errorf("unexpected name %q", got)
	}
}
