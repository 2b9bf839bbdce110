package exec

import (
	"regexp"
	"strings"

	"github.com/codecore/codecore/internal/session"
)

// Outcome is the result of consulting the safety module before spawning a
// privileged operation (spec.md §4.3.2).
type Outcome int

const (
	// OutcomeAutoApprove means the command may run without prompting, under
	// the given SandboxType.
	OutcomeAutoApprove Outcome = iota
	// OutcomeAskUser means the user must approve interactively.
	OutcomeAskUser
	// OutcomeReject means the command is blocked outright; no registry entry
	// is created and no side effect occurs.
	OutcomeReject
)

// Decision is the full result of Gate.Evaluate.
type Decision struct {
	Outcome     Outcome
	SandboxType string // only meaningful when Outcome == OutcomeAutoApprove
	Reason      string // set for OutcomeReject and for a confirm-guard OutcomeAskUser
}

// defaultConfirmGuards are regexes that intercept matching commands and
// require the user to resubmit with an explicit "confirm:" prefix, even
// under an approval policy that would otherwise auto-approve. Grounded on
// the teacher's shell-metacharacter/option-injection pattern family in
// internal/exec/safety.go, extended to whole-command intent.
var defaultConfirmGuards = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\b`),
	regexp.MustCompile(`(?i)\bgit\s+push\s+--force\b`),
	regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
}

// Gate consults approval policy, sandbox policy, and confirm-guard regexes
// to decide whether a command may run.
type Gate struct {
	ConfirmGuards []*regexp.Regexp
}

// NewGate constructs a Gate with the default confirm-guard set.
func NewGate() *Gate {
	return &Gate{ConfirmGuards: defaultConfirmGuards}
}

// Evaluate decides the Outcome for a single exec invocation. commandLine is
// the shell-joined command text used only for confirm-guard matching;
// confirmed is true when the user resubmitted with an explicit "confirm:"
// prefix.
func (g *Gate) Evaluate(approval session.ApprovalPolicy, sandbox session.SandboxPolicy, commandLine string, escalated, confirmed bool) Decision {
	if !confirmed {
		for _, re := range g.ConfirmGuards {
			if re.MatchString(commandLine) {
				return Decision{Outcome: OutcomeAskUser, Reason: "command matches a confirm-guard pattern; resubmit with an explicit confirm: prefix"}
			}
		}
	}

	switch approval {
	case session.ApprovalNever:
		return Decision{Outcome: OutcomeReject, Reason: "approval policy is never"}
	case session.ApprovalUnlessTrusted:
		if escalated {
			return Decision{Outcome: OutcomeAskUser}
		}
		return Decision{Outcome: OutcomeAutoApprove, SandboxType: sandboxType(sandbox)}
	case session.ApprovalOnRequest:
		return Decision{Outcome: OutcomeAskUser}
	case session.ApprovalOnFailure:
		return Decision{Outcome: OutcomeAutoApprove, SandboxType: sandboxType(sandbox)}
	default:
		return Decision{Outcome: OutcomeAskUser}
	}
}

func sandboxType(p session.SandboxPolicy) string {
	switch p.Mode {
	case session.SandboxDangerFullAccess:
		return "none"
	case session.SandboxReadOnly:
		return "read-only"
	case session.SandboxWorkspaceWrite:
		return "workspace-write"
	default:
		return "read-only"
	}
}

// IsConfirmed reports whether commandLine was resubmitted with the explicit
// "confirm:" prefix, and returns the command with the prefix stripped.
func IsConfirmed(commandLine string) (stripped string, confirmed bool) {
	const prefix = "confirm:"
	trimmed := strings.TrimSpace(commandLine)
	if strings.HasPrefix(trimmed, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), true
	}
	return commandLine, false
}
