package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", fmt.Errorf("wrap: %w", ErrRunCancelled), KindCancelled},
		{"context", context.Canceled, KindCancelled},
		{"selection", &SelectionError{Name: "Bob"}, KindSelection},
		{"decision", &DecisionParseError{Raw: "??"}, KindDecision},
		{"remote", &RemoteWorkerUnavailable{Worker: "dev", Err: errors.New("dial")}, KindRemoteUnavailable},
		{"other", errors.New("boom"), KindFailed},
		{"run failed", &RunFailed{Err: errors.New("boom")}, KindFailed},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("%s: Kind() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassified(t *testing.T) {
	if Classified(errors.New("plain")) {
		t.Fatal("plain error should not be classified")
	}
	wrapped := fmt.Errorf("turn 2: %w", &SelectionError{Name: "x"})
	if !Classified(wrapped) {
		t.Fatal("wrapped selection error should be classified")
	}
	if !Classified(ErrRunCancelled) {
		t.Fatal("cancellation should be classified")
	}
}

func TestRemoteWorkerUnavailableUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RemoteWorkerUnavailable{Worker: "Developer", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
}
