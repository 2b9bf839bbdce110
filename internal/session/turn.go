package session

// TurnContext is an immutable-per-turn snapshot of configuration that may
// have been overridden for a single model turn. A new instance is created
// per turn; it is never mutated after construction.
type TurnContext struct {
	Model             string
	ReasoningEffort   string
	Sandbox           SandboxPolicy
	Approval          ApprovalPolicy
	ReviewMode        bool
	TextFormatOverride string
	FinalOutputSchema  []byte // optional JSON schema, nil if unset
}

// WithOverrides returns a copy of the TurnContext with the given overrides applied.
// Zero-value fields in overrides leave the corresponding base field intact,
// mirroring how a new turn inherits session defaults unless explicitly
// overridden.
func (t TurnContext) WithOverrides(overrides TurnContext) TurnContext {
	out := t
	if overrides.Model != "" {
		out.Model = overrides.Model
	}
	if overrides.ReasoningEffort != "" {
		out.ReasoningEffort = overrides.ReasoningEffort
	}
	if overrides.Sandbox.Mode != "" {
		out.Sandbox = overrides.Sandbox
	}
	if overrides.Approval != "" {
		out.Approval = overrides.Approval
	}
	out.ReviewMode = out.ReviewMode || overrides.ReviewMode
	if overrides.TextFormatOverride != "" {
		out.TextFormatOverride = overrides.TextFormatOverride
	}
	if overrides.FinalOutputSchema != nil {
		out.FinalOutputSchema = overrides.FinalOutputSchema
	}
	return out
}
