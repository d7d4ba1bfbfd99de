package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/sweetpotato0/ai-devteam/backend"
	"github.com/sweetpotato0/ai-devteam/backend/backendtest"
	"github.com/sweetpotato0/ai-devteam/message"
)

type recorder struct {
	name  string
	err   error
	order *[]string
}

func (m *recorder) Name() string { return m.name }

func (m *recorder) Execute(ctx *Context, next Handler) error {
	*m.order = append(*m.order, m.name)
	if m.err != nil {
		return m.err
	}
	return next(ctx)
}

func TestMiddlewareChain(t *testing.T) {
	t.Run("empty chain executes final handler", func(t *testing.T) {
		executed := false
		err := NewChain().Execute(&Context{}, func(*Context) error {
			executed = true
			return nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !executed {
			t.Error("final handler was not executed")
		}
	})

	t.Run("executes in order", func(t *testing.T) {
		var order []string
		chain := NewChain(&recorder{name: "m1", order: &order}).Add(&recorder{name: "m2", order: &order})

		_ = chain.Execute(&Context{}, func(*Context) error {
			order = append(order, "final")
			return nil
		})

		want := []string{"m1", "m2", "final"}
		if len(order) != len(want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("step %d: expected %s, got %s", i, want[i], order[i])
			}
		}
	})

	t.Run("error stops chain", func(t *testing.T) {
		var order []string
		boom := errors.New("boom")
		chain := NewChain(&recorder{name: "m1", err: boom, order: &order}, &recorder{name: "m2", order: &order})

		err := chain.Execute(&Context{}, func(*Context) error {
			order = append(order, "final")
			return nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if len(order) != 1 {
			t.Errorf("expected only m1 to run, got %v", order)
		}
	})
}

func TestWrap(t *testing.T) {
	client := backendtest.New(backendtest.Text("hello"))

	t.Run("empty chain returns client unchanged", func(t *testing.T) {
		if got := Wrap(client, "Developer", NewChain()); got != backend.Client(client) {
			t.Error("expected the original client")
		}
	})

	t.Run("middlewares see request and response", func(t *testing.T) {
		var seenWorker, seenResponse string
		chain := NewChain(Func{ID: "inspect", Fn: func(ctx *Context, next Handler) error {
			seenWorker = ctx.Worker
			ctx.Request.Temperature = 0.5
			err := next(ctx)
			if ctx.Response != nil {
				seenResponse = ctx.Response.Content
			}
			return err
		}})

		resp, err := Wrap(client, "Developer", chain).Generate(context.Background(), &backend.Request{
			Messages: []*message.Message{message.NewMessage(message.RoleUser, "hi")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != "hello" || seenResponse != "hello" {
			t.Errorf("unexpected response %q / %q", resp.Content, seenResponse)
		}
		if seenWorker != "Developer" {
			t.Errorf("unexpected worker %q", seenWorker)
		}
		reqs := client.Requests()
		if reqs[len(reqs)-1].Temperature != 0.5 {
			t.Error("request changes were not forwarded")
		}
	})

	t.Run("backend error propagates", func(t *testing.T) {
		boom := errors.New("backend down")
		failing := backendtest.New(backendtest.Fail(boom))
		chain := NewChain(Func{ID: "noop", Fn: func(ctx *Context, next Handler) error { return next(ctx) }})

		_, err := Wrap(failing, "Tester", chain).Generate(context.Background(), &backend.Request{})
		if !errors.Is(err, boom) {
			t.Errorf("expected backend error, got %v", err)
		}
	})
}
