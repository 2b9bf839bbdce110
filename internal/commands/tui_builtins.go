package commands

import (
	"context"
	"strings"
)

// RegisterTUIBuiltins registers the slash commands that are specific to
// the interactive TUI shell (spec.md §4.6, §6.4): review, theme,
// settings, the prompt-expanding triad, and the quit/exit aliases. It
// is meant to be called alongside RegisterBuiltins on the same
// Registry.
func RegisterTUIBuiltins(r *Registry) {
	mustRegister := func(cmd *Command) {
		if err := r.Register(cmd); err != nil {
			panic("failed to register tui builtin command \"" + cmd.Name + "\": " + err.Error())
		}
	}

	mustRegister(&Command{
		Name:        "review",
		Description: "Review the current diff",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{
				Text: "Starting review...",
				Data: map[string]any{"action": "review"},
			}, nil
		},
	})

	mustRegister(&Command{
		Name:        "theme",
		Description: "Show or change the active color theme",
		Usage:       "/theme [name]",
		AcceptsArgs: true,
		Category:    "config",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			name := strings.TrimSpace(inv.Args)
			if name == "" {
				return &Result{Text: "Usage: /theme <name>", Data: map[string]any{"action": "get_theme"}}, nil
			}
			return &Result{
				Text: "Theme changed to: " + name,
				Data: map[string]any{"action": "set_theme", "theme": name},
			}, nil
		},
	})

	mustRegister(&Command{
		Name:        "settings",
		Description: "Open the settings overlay",
		Category:    "config",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{Text: "Opening settings...", Data: map[string]any{"action": "settings"}}, nil
		},
	})

	for _, name := range []string{"plan", "solve", "code"} {
		name := name
		mustRegister(&Command{
			Name:        name,
			Description: promptExpandingDescription(name),
			Usage:       "/" + name + " <description>",
			AcceptsArgs: true,
			Category:    "prompt",
			Source:      "builtin",
			Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
				prompt, _ := ExpandPrompt(name, inv.Args)
				return &Result{
					Text: prompt,
					Data: map[string]any{"action": "submit_prompt", "expanded_from": name},
				}, nil
			},
		})
	}

	mustRegister(&Command{
		Name:        "quit",
		Aliases:     []string{"exit"},
		Description: "Exit the application",
		Category:    "system",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{
				Text: "Goodbye.",
				Data: map[string]any{"action": "quit"},
			}, nil
		},
	})
}

func promptExpandingDescription(name string) string {
	switch name {
	case "plan":
		return "Draft an implementation plan without writing code"
	case "solve":
		return "Investigate and resolve a problem end to end"
	case "code":
		return "Implement a change directly"
	default:
		return ""
	}
}
