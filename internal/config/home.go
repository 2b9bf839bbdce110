package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// homeFileName is the TOML settings file under the resolved home
// directory (spec.md §6.3).
const homeFileName = "config.toml"

var mcpServerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Home is the user-editable, TOML-persisted settings tree. It holds
// the things a person edits directly: model preference,
// per-project trust, TUI appearance, and MCP server registrations.
type Home struct {
	Model                          string                    `toml:"model,omitempty"`
	ModelReasoningEffort           string                    `toml:"model_reasoning_effort,omitempty"`
	PreferredModelReasoningEffort  string                    `toml:"preferred_model_reasoning_effort,omitempty"`
	Profiles                       map[string]Profile        `toml:"profiles,omitempty"`
	Projects                       map[string]ProjectSetting `toml:"projects,omitempty"`
	TUI                            TUISettings               `toml:"tui,omitempty"`
	MCPServers                     map[string]MCPServerEntry `toml:"mcp_servers,omitempty"`
	MCPServersDisabled             map[string]MCPServerEntry `toml:"mcp_servers_disabled,omitempty"`
}

// Profile is a named override of the root model settings (spec.md
// §6.3: "root or per [profiles.<name>]").
type Profile struct {
	Model                         string `toml:"model,omitempty"`
	ModelReasoningEffort          string `toml:"model_reasoning_effort,omitempty"`
	PreferredModelReasoningEffort string `toml:"preferred_model_reasoning_effort,omitempty"`
}

// ProjectSetting holds per-workspace trust and sandboxing policy.
type ProjectSetting struct {
	TrustLevel           string        `toml:"trust_level,omitempty"`
	ApprovalPolicy       string        `toml:"approval_policy,omitempty"`
	SandboxMode          string        `toml:"sandbox_mode,omitempty"`
	AlwaysAllowCommands  []AllowedCmd  `toml:"always_allow_commands,omitempty"`
}

// AllowedCmd is one pre-approved command pattern.
type AllowedCmd struct {
	Argv      []string `toml:"argv"`
	MatchKind string   `toml:"match_kind"` // "exact" | "prefix"
}

// TUISettings holds the `[tui]` table and its theme/spinner subtables.
type TUISettings struct {
	AlternateScreen    bool          `toml:"alternate_screen"`
	Notifications      bool          `toml:"notifications"`
	ReviewAutoResolve  bool          `toml:"review_auto_resolve"`
	AutoReviewEnabled  bool          `toml:"auto_review_enabled"`
	Theme              ThemeSetting  `toml:"theme,omitempty"`
	Spinner            SpinnerSetting `toml:"spinner,omitempty"`
}

// ThemeSetting is `[tui.theme]`.
type ThemeSetting struct {
	Name   string            `toml:"name,omitempty"`
	Label  string            `toml:"label,omitempty"`
	IsDark bool              `toml:"is_dark"`
	Colors map[string]string `toml:"colors,omitempty"`
}

// SpinnerSetting is `[tui.spinner]`.
type SpinnerSetting struct {
	Name   string                    `toml:"name,omitempty"`
	Custom map[string]CustomSpinner  `toml:"custom,omitempty"`
}

// CustomSpinner is one entry under `[tui.spinner.custom.<id>]`.
type CustomSpinner struct {
	Frames   []string `toml:"frames"`
	Interval int      `toml:"interval"`
	Label    string   `toml:"label,omitempty"`
}

// MCPServerEntry is one `[mcp_servers.<name>]` table: either a
// stdio-launched server (Command/Args/Env) or a remote one (URL/
// BearerToken).
type MCPServerEntry struct {
	Command           string            `toml:"command,omitempty"`
	Args              []string          `toml:"args,omitempty"`
	Env               map[string]string `toml:"env,omitempty"`
	StartupTimeoutSec int               `toml:"startup_timeout_sec,omitempty"`
	ToolTimeoutSec    int               `toml:"tool_timeout_sec,omitempty"`
	URL               string            `toml:"url,omitempty"`
	BearerToken       string            `toml:"bearer_token,omitempty"`
}

// HomeDir resolves CODE_HOME > CODEX_HOME > $HOME/.code (spec.md
// §6.3).
func HomeDir() (string, error) {
	if v := os.Getenv("CODE_HOME"); v != "" {
		return v, nil
	}
	if v := os.Getenv("CODEX_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".code"), nil
}

// legacyHomeDir is the read-only fallback used only when no env
// override is set and nothing exists at the primary location.
func legacyHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex"), nil
}

// LoadHome reads config.toml from the resolved home directory. If env
// overrides are unset and no file exists at the primary location, it
// falls back to reading `$HOME/.codex/config.toml` (legacy
// compatibility); writes always target the primary location.
func LoadHome() (*Home, string, error) {
	primary, err := HomeDir()
	if err != nil {
		return nil, "", err
	}
	primaryPath := filepath.Join(primary, homeFileName)

	if _, err := os.Stat(primaryPath); err == nil {
		h, err := decodeHomeFile(primaryPath)
		return h, primaryPath, err
	}

	if os.Getenv("CODE_HOME") == "" && os.Getenv("CODEX_HOME") == "" {
		legacy, err := legacyHomeDir()
		if err == nil {
			legacyPath := filepath.Join(legacy, homeFileName)
			if _, statErr := os.Stat(legacyPath); statErr == nil {
				h, err := decodeHomeFile(legacyPath)
				return h, primaryPath, err
			}
		}
	}

	return &Home{}, primaryPath, nil
}

func decodeHomeFile(path string) (*Home, error) {
	var h Home
	if _, err := toml.DecodeFile(path, &h); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for name := range h.MCPServers {
		if !mcpServerNamePattern.MatchString(name) {
			return nil, fmt.Errorf("mcp server name %q must match %s", name, mcpServerNamePattern.String())
		}
	}
	return &h, nil
}

// SaveHome atomically writes h to path (write-temp-then-rename in the
// home directory, spec.md §6.3: "All writes are atomic").
func SaveHome(path string, h *Home) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(h); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
