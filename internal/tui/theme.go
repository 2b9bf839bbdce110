package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a named palette applied to chrome (borders, status line,
// diff colors) via the config's `[tui.theme]` table (spec.md §6.3).
type Theme struct {
	Name   string
	Label  string
	IsDark bool

	Accent    lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Success   lipgloss.Color
	Muted     lipgloss.Color
	Reasoning lipgloss.Color
}

func (t Theme) AccentStyle() lipgloss.Style    { return lipgloss.NewStyle().Foreground(t.Accent) }
func (t Theme) ErrorStyle() lipgloss.Style     { return lipgloss.NewStyle().Foreground(t.Error) }
func (t Theme) WarningStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(t.Warning) }
func (t Theme) SuccessStyle() lipgloss.Style   { return lipgloss.NewStyle().Foreground(t.Success) }
func (t Theme) MutedStyle() lipgloss.Style     { return lipgloss.NewStyle().Foreground(t.Muted) }
func (t Theme) ReasoningStyle() lipgloss.Style { return lipgloss.NewStyle().Foreground(t.Reasoning).Italic(true) }

// DefaultDark and DefaultLight are the two built-in themes; custom
// themes loaded from config layer on top via Registry.Register.
var DefaultDark = Theme{
	Name: "dark", Label: "Default Dark", IsDark: true,
	Accent: "12", Error: "9", Warning: "11", Success: "10", Muted: "8", Reasoning: "13",
}

var DefaultLight = Theme{
	Name: "light", Label: "Default Light", IsDark: false,
	Accent: "4", Error: "1", Warning: "3", Success: "2", Muted: "7", Reasoning: "5",
}

// Registry holds the built-in and config-defined themes, plus the
// currently active one and the epoch counter the render cache keys on
// (any theme change bumps Epoch so layout caches keyed on the old
// theme are invalidated, per spec.md §4.5).
type Registry struct {
	themes map[string]Theme
	active string
	Epoch  int
}

func NewRegistry() *Registry {
	r := &Registry{themes: make(map[string]Theme), active: DefaultDark.Name}
	r.Register(DefaultDark)
	r.Register(DefaultLight)
	return r
}

func (r *Registry) Register(t Theme) { r.themes[t.Name] = t }

func (r *Registry) Get(name string) (Theme, bool) {
	t, ok := r.themes[name]
	return t, ok
}

func (r *Registry) Active() Theme { return r.themes[r.active] }

// SetActive switches the active theme and bumps Epoch; it is a no-op
// (including the epoch bump) if name is already active or unknown.
func (r *Registry) SetActive(name string) bool {
	if name == r.active {
		return true
	}
	if _, ok := r.themes[name]; !ok {
		return false
	}
	r.active = name
	r.Epoch++
	return true
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.themes))
	for name := range r.themes {
		names = append(names, name)
	}
	return names
}
