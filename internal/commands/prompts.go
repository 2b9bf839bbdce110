package commands

import (
	"bytes"
	"fmt"
	"text/template"
)

// promptExpanders maps a command name to the template its args are
// formatted through to produce a full LLM prompt (spec.md §6.4:
// "/plan, /solve, /code ... produce full LLM prompts by formatting the
// command args through the core slash-command templates").
var promptExpanders = map[string]*template.Template{
	"plan":  template.Must(template.New("plan").Parse(planPromptTemplate)),
	"solve": template.Must(template.New("solve").Parse(solvePromptTemplate)),
	"code":  template.Must(template.New("code").Parse(codePromptTemplate)),
}

const planPromptTemplate = `Draft an implementation plan for the following request. Break it into
concrete, ordered steps, call out open questions, and do not write code yet.

Request: {{.Args}}`

const solvePromptTemplate = `Investigate and resolve the following problem end to end: find the root
cause, make the necessary changes, and verify the fix.

Problem: {{.Args}}`

const codePromptTemplate = `Implement the following change directly. Follow the repository's existing
conventions and keep the diff focused on what was asked.

Change: {{.Args}}`

type promptArgs struct{ Args string }

// ExpandPrompt formats name's template with args, returning ok=false if
// name isn't a prompt-expanding command.
func ExpandPrompt(name, args string) (prompt string, ok bool) {
	tmpl, found := promptExpanders[name]
	if !found {
		return "", false
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptArgs{Args: args}); err != nil {
		return fmt.Sprintf("%s: %s", name, args), true
	}
	return buf.String(), true
}

// IsPromptExpanding reports whether name expands into a full LLM prompt
// rather than being dispatched to the TUI as (command, canonical_text).
func IsPromptExpanding(name string) bool {
	_, ok := promptExpanders[name]
	return ok
}
