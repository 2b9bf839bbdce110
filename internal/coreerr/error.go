// Package coreerr defines the error taxonomy shared across the core: a small
// set of Kinds attached to ordinary wrapped errors so orchestrators can
// translate failures into well-formed End events without losing the
// underlying cause.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for policy and rendering purposes. It is not a
// replacement for Go's error chain — it rides alongside it.
type Kind string

const (
	// KindPolicyRejected means a command was blocked by sandbox policy or a
	// confirm-guard before it ran. No side effect occurred.
	KindPolicyRejected Kind = "policy_rejected"
	// KindTimeout means an exec exceeded its configured timeout.
	KindTimeout Kind = "timeout"
	// KindSandboxDenied means the sandbox refused to run the command
	// (observed as a distinguished non-zero exit, e.g. 126).
	KindSandboxDenied Kind = "sandbox_denied"
	// KindOutOfMemory means the process was killed by the OOM killer.
	KindOutOfMemory Kind = "out_of_memory"
	// KindTransport means a bridge socket, MCP transport, or stream reset.
	KindTransport Kind = "transport"
	// KindProtocolTimeout means an auth or subscribe handshake exceeded its
	// deadline. Treated as a Transport failure by callers that don't care
	// about the distinction.
	KindProtocolTimeout Kind = "protocol_timeout"
	// KindFatal means an internal invariant was violated (closed submission
	// channel, poisoned lock). Propagates to the session loop.
	KindFatal Kind = "fatal"
)

// CoreError wraps an underlying error with a Kind and optional guidance text
// shown to the user alongside the one-line summary.
type CoreError struct {
	Kind     Kind
	Guidance string
	Err      error
}

func (e *CoreError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Err, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

// New wraps err with the given Kind.
func New(kind Kind, err error) *CoreError {
	return &CoreError{Kind: kind, Err: err}
}

// Newf wraps a formatted error with the given Kind.
func Newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithGuidance attaches resend/recovery guidance text, returning a new value.
func (e *CoreError) WithGuidance(guidance string) *CoreError {
	return &CoreError{Kind: e.Kind, Guidance: guidance, Err: e.Err}
}

// KindOf extracts the Kind from err's chain, if any CoreError is present.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsFatal reports whether err (or any error in its chain) is KindFatal.
func IsFatal(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindFatal
}
