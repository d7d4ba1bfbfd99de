package errorhandler

import (
	"context"
	"errors"
	"testing"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/middleware"
)

func TestErrorHandler(t *testing.T) {
	t.Run("can suppress errors", func(t *testing.T) {
		caught := false
		handler := NewErrorHandler(func(*middleware.Context, error) error {
			caught = true
			return nil
		})

		err := handler.Execute(&middleware.Context{}, func(*middleware.Context) error {
			return errors.New("test error")
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !caught {
			t.Error("error was not caught")
		}
	})

	t.Run("passes success through", func(t *testing.T) {
		called := false
		handler := NewErrorHandler(func(*middleware.Context, error) error {
			called = true
			return nil
		})
		if err := handler.Execute(&middleware.Context{}, func(*middleware.Context) error { return nil }); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if called {
			t.Error("handler ran without an error")
		}
	})
}

func TestAnnotate(t *testing.T) {
	ctx := &middleware.Context{Worker: "Architect"}
	boom := errors.New("503 from provider")

	err := NewErrorHandler(nil).Execute(ctx, func(*middleware.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("annotation lost the cause: %v", err)
	}
	if got, want := err.Error(), "Architect completion failed: 503 from provider"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	for _, keep := range []error{context.Canceled, errorskg.ErrRunCancelled} {
		if got := Annotate(ctx, keep); got != keep {
			t.Errorf("expected %v untouched, got %v", keep, got)
		}
	}
}

func TestName(t *testing.T) {
	if got := NewErrorHandler(nil).Name(); got != "ErrorHandler" {
		t.Errorf("unexpected name %q", got)
	}
}
