package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionBusy is returned when a session already has a run in flight.
	ErrSessionBusy = errors.New("session is busy with another request")

	// ErrRunCancelled marks a run stopped by its caller.
	ErrRunCancelled = errors.New("run cancelled")
)

// Error kinds reported to transport surfaces.
const (
	KindCancelled         = "cancelled"
	KindFailed            = "failed"
	KindSelection         = "selection"
	KindDecision          = "decision"
	KindRemoteUnavailable = "remote_unavailable"
)

// SelectionError reports that the completion backend picked a worker that is
// not part of the catalog.
type SelectionError struct {
	Name       string
	Candidates []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection: unknown worker %q (candidates: %s)", e.Name, strings.Join(e.Candidates, ", "))
}

// DecisionParseError reports a backend answer that could not be parsed into a
// structured decision.
type DecisionParseError struct {
	Raw string
	Err error
}

func (e *DecisionParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decision: unparsable response %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("decision: unparsable response %q", e.Raw)
}

func (e *DecisionParseError) Unwrap() error { return e.Err }

// RemoteWorkerUnavailable wraps transport failures talking to a remote worker.
type RemoteWorkerUnavailable struct {
	Worker string
	Err    error
}

func (e *RemoteWorkerUnavailable) Error() string {
	return fmt.Sprintf("remote worker %s unavailable: %v", e.Worker, e.Err)
}

func (e *RemoteWorkerUnavailable) Unwrap() error { return e.Err }

// RunFailed wraps any other failure raised inside an orchestration loop.
type RunFailed struct {
	Err error
}

func (e *RunFailed) Error() string {
	return fmt.Sprintf("run failed: %v", e.Err)
}

func (e *RunFailed) Unwrap() error { return e.Err }

// Classified reports whether err already belongs to the orchestration taxonomy.
func Classified(err error) bool {
	var (
		sel    *SelectionError
		parse  *DecisionParseError
		remote *RemoteWorkerUnavailable
		failed *RunFailed
	)
	return errors.Is(err, ErrRunCancelled) ||
		errors.As(err, &sel) ||
		errors.As(err, &parse) ||
		errors.As(err, &remote) ||
		errors.As(err, &failed)
}

// Kind maps an error onto the short label used by the HTTP and CLI surfaces.
func Kind(err error) string {
	var (
		sel    *SelectionError
		parse  *DecisionParseError
		remote *RemoteWorkerUnavailable
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRunCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &sel):
		return KindSelection
	case errors.As(err, &parse):
		return KindDecision
	case errors.As(err, &remote):
		return KindRemoteUnavailable
	default:
		return KindFailed
	}
}
