package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed metadata-service call.  Callers decide
// retry/abort policy; the client itself never retries.
type ErrorKind int

const (
	NotFound ErrorKind = iota
	PermissionDenied
	ValidationError
	Timeout
	TransientError
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case PermissionDenied:
		return "permission-denied"
	case ValidationError:
		return "validation"
	case Timeout:
		return "timeout"
	case TransientError:
		return "transient"
	default:
		return "unknown"
	}
}

// RemoteError is returned for any call the service answered with a
// non-success status, or that timed out on the wire.
type RemoteError struct {
	Kind    ErrorKind
	Status  string // HTTP status line, if any
	Details string // response body excerpt, for validation errors
}

func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("platform: %s: %s: %s", e.Kind, e.Status, e.Details)
	}
	if e.Status != "" {
		return fmt.Sprintf("platform: %s: %s", e.Kind, e.Status)
	}
	return fmt.Sprintf("platform: %s", e.Kind)
}

// KindOf unwraps err looking for a RemoteError.  Deadline expiry
// counts as Timeout even when the transport surfaced it as a plain
// context error.
func KindOf(err error) (ErrorKind, bool) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout, true
	}
	return 0, false
}
