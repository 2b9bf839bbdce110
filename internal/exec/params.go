package exec

import "time"

// Params describes a single command invocation (spec.md §4.3.1).
type Params struct {
	Command                []string
	Cwd                     string
	TimeoutMS               int64 // 0 means no timeout
	Env                     map[string]string
	WithEscalatedPermissions bool
	Justification           string
}

// Timeout returns Params.TimeoutMS as a time.Duration, or 0 if unset.
func (p Params) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// InvokeArgs carries sandbox selection and the optional streaming sink for
// a single exec invocation.
type InvokeArgs struct {
	SandboxType   string
	SandboxPolicy any // session.SandboxPolicy; kept as any to avoid an import cycle with the gate decision path
	SandboxCwd    string
	Stdout        *StreamSink
}

// StreamSink bundles what the orchestrator uses to stream output for one
// call: identity, the event channel, and an optional spool directory for
// on-disk capture. It carries no tail buffer and no ordering metadata.
type StreamSink struct {
	SubmissionID string
	CallID       string
	Events       chan<- Event
	SpoolDir     string // empty disables on-disk capture
}
