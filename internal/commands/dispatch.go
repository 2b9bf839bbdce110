package commands

import "context"

// Dispatched is the outcome of routing one line of TUI input through
// the slash-command surface (spec.md §6.4).
type Dispatched struct {
	// IsCommand is false when text wasn't recognized as a command at
	// all (ordinary chat input); every other field is zero in that case.
	IsCommand bool

	// Notice is a user-facing error or informational string — set for
	// unknown and unavailable commands and for a command whose handler
	// returned an error, and left empty otherwise.
	Notice string

	// Prompt holds the expanded LLM prompt for /plan, /solve, /code.
	Prompt string

	// Name and CanonicalText carry everything else through to the TUI
	// as (command, canonical_text) for local handling (e.g. /new,
	// /theme, /quit).
	Name          string
	CanonicalText string
	Result        *Result
}

// Dispatcher routes a single TUI input line to a registered command,
// a prompt expansion, or a not-found/unavailable notice.
type Dispatcher struct {
	registry *Registry
	parser   *Parser
}

// NewDispatcher builds a Dispatcher over registry using only the "/"
// prefix — the TUI has no inline-command surface, unlike the
// multi-channel chat parser this is adapted from.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, parser: NewParser(registry, "/")}
}

// Dispatch parses text and routes it. ctx and inv fields beyond Name/
// Args/RawText are left for the caller to fill in before re-invoking
// Execute when CanonicalText handling needs the full Result.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) Dispatched {
	parsed := d.parser.ParseCommand(text)
	if parsed == nil {
		return Dispatched{}
	}

	if parsed.Name == "exit" || parsed.Name == "quit" {
		parsed.Name = "quit"
	}

	cmd, exists := d.registry.Get(parsed.Name)
	if !exists {
		return Dispatched{IsCommand: true, Notice: "Unknown command: /" + parsed.Name}
	}
	if cmd.Available != nil && !cmd.Available() {
		return Dispatched{IsCommand: true, Notice: "/" + cmd.Name + " is not available in this build"}
	}

	if IsPromptExpanding(cmd.Name) {
		prompt, _ := ExpandPrompt(cmd.Name, parsed.Args)
		return Dispatched{IsCommand: true, Prompt: prompt, Name: cmd.Name, CanonicalText: text}
	}

	result, err := d.registry.Execute(ctx, &Invocation{Name: parsed.Name, Args: parsed.Args, RawText: text})
	if err != nil {
		return Dispatched{IsCommand: true, Notice: err.Error()}
	}
	return Dispatched{IsCommand: true, Name: cmd.Name, CanonicalText: text, Result: result}
}
