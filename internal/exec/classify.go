package exec

import "github.com/codecore/codecore/internal/coreerr"

// sandboxDeniedExitCode is the exit code sandboxes conventionally use to
// signal a denied syscall or policy violation rather than a genuine
// command failure.
const sandboxDeniedExitCode = 126

// ClassifyEnd maps a terminal EndEvent onto the shared error taxonomy
// (spec.md §7) so callers can log or render a well-formed failure kind
// instead of inspecting individual EndEvent fields themselves. It
// returns ("", false) for an ordinary successful exit.
func ClassifyEnd(end EndEvent) (coreerr.Kind, bool) {
	switch {
	case end.TimedOut:
		return coreerr.KindTimeout, true
	case end.OOMKilled:
		return coreerr.KindOutOfMemory, true
	case end.ExitCode == sandboxDeniedExitCode:
		return coreerr.KindSandboxDenied, true
	default:
		return "", false
	}
}

// ClassifyDecision turns a rejected gate Decision into a CoreError callers
// can log or surface to the user; it returns nil for any non-reject outcome.
func ClassifyDecision(d Decision) error {
	if d.Outcome != OutcomeReject {
		return nil
	}
	return coreerr.Newf(coreerr.KindPolicyRejected, "command rejected: %s", d.Reason)
}
