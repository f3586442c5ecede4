package draft

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure.
type Kind string

const (
	// KindTransport covers network failures and timeouts.
	KindTransport Kind = "transport"
	// KindAuth is a 401/403 from the completion service.
	KindAuth Kind = "auth"
	// KindStatus is any other non-2xx response.
	KindStatus Kind = "status"
	// KindResponse is a response body that is not a usable completion.
	KindResponse Kind = "response"
	// KindContent is completion text that does not parse as a task.
	KindContent Kind = "content"
	// KindUnavailable means the circuit breaker rejected the call.
	KindUnavailable Kind = "unavailable"
	// KindCancelled means the caller's context ended first.
	KindCancelled Kind = "cancelled"
)

// ErrTruncated is reported when generated text opens or closes a JSON
// object without the matching delimiter.
var ErrTruncated = errors.New("draft: unbalanced braces in generated text")

// GenerationError is returned for every failed draft or rewrite. The
// operation had no side effects and may be retried.
type GenerationError struct {
	Op   string
	Kind Kind
	// Status is the HTTP status for KindAuth and KindStatus.
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("draft: %s: %s (%d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("draft: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsKind reports whether err is a GenerationError of kind k.
func IsKind(err error, k Kind) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == k
}

func withOp(err error, op string) error {
	var ge *GenerationError
	if errors.As(err, &ge) {
		cp := *ge
		cp.Op = op
		return &cp
	}
	return &GenerationError{Op: op, Kind: KindTransport, Err: err}
}
