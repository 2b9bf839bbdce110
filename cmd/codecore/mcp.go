package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codecore/codecore/internal/config"
	"github.com/codecore/codecore/internal/mcp"
)

// mcpServerConfigs translates config.Home's persisted [mcp_servers.<name>]
// tables (spec.md §6.3) into the internal/mcp package's own ServerConfig,
// skipping anything listed under mcp_servers_disabled (spec.md §8: "Persist
// then load MCP servers ... transport variants preserved exactly").
func mcpServerConfigs(home *config.Home) []mcp.ServerConfig {
	names := make([]string, 0, len(home.MCPServers))
	for name := range home.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mcp.ServerConfig, 0, len(names))
	for _, name := range names {
		entry := home.MCPServers[name]
		out = append(out, mcp.ServerConfig{
			Name:           name,
			Command:        entry.Command,
			Args:           entry.Args,
			Env:            entry.Env,
			URL:            entry.URL,
			BearerToken:    entry.BearerToken,
			StartupTimeout: time.Duration(entry.StartupTimeoutSec) * time.Second,
			ToolTimeout:    time.Duration(entry.ToolTimeoutSec) * time.Second,
		})
	}
	return out
}

// =============================================================================
// MCP admin commands
// =============================================================================
//
// These manage server *registrations* persisted in the TOML home
// settings file (internal/config.Home, spec.md §6.3/§6.5) — distinct
// from invoking a running server's tools, resources, or prompts.

// buildMcpCmd creates the "mcp" command group for registering MCP
// servers (spec.md §6.5).
func buildMcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage registered MCP servers",
		Long: `Manage the set of MCP servers codecore will connect to.

Use "codecore mcp list" to see what's registered.`,
	}
	cmd.AddCommand(
		buildMcpListCmd(),
		buildMcpGetCmd(),
		buildMcpAddCmd(),
		buildMcpRemoveCmd(),
	)
	return cmd
}

func buildMcpListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMcpList(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func runMcpList(cmd *cobra.Command, asJSON bool) error {
	home, _, err := config.LoadHome()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	names := make([]string, 0, len(home.MCPServers))
	for name := range home.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(home.MCPServers)
	}

	if len(names) == 0 {
		fmt.Fprintln(out, "No MCP servers registered.")
		return nil
	}
	for _, name := range names {
		entry := home.MCPServers[name]
		fmt.Fprintf(out, "%s: %s\n", name, describeEntry(entry))
	}
	return nil
}

func buildMcpGetCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a registered MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMcpGet(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func runMcpGet(cmd *cobra.Command, name string, asJSON bool) error {
	home, _, err := config.LoadHome()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	entry, ok := home.MCPServers[name]
	if !ok {
		return fmt.Errorf("no MCP server named %q", name)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}
	fmt.Fprintf(out, "%s: %s\n", name, describeEntry(entry))
	return nil
}

func describeEntry(entry config.MCPServerEntry) string {
	if entry.URL != "" {
		if entry.BearerToken != "" {
			return fmt.Sprintf("streamable_http %s (bearer token set)", entry.URL)
		}
		return fmt.Sprintf("stdio via npx mcp-remote -> %s", entry.URL)
	}
	return fmt.Sprintf("stdio %s %s", entry.Command, strings.Join(entry.Args, " "))
}

func buildMcpAddCmd() *cobra.Command {
	var (
		url         string
		bearerToken string
		envPairs    []string
	)
	cmd := &cobra.Command{
		Use:   "add <name> [-- command args...]",
		Short: "Register an MCP server",
		Long: `Register a new MCP server under <name>.

Three forms:

  codecore mcp add docs --url https://example.com/mcp
      registers a stdio server that proxies the remote endpoint via
      "npx -y mcp-remote <url>".

  codecore mcp add docs --url https://example.com/mcp --bearer-token TOKEN
      registers a streamable_http server authenticated with the given
      bearer token.

  codecore mcp add filesystem -- npx -y mcp-server-fs
      registers a stdio server launched with the given command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			command := args[1:]
			return runMcpAdd(cmd, name, url, bearerToken, envPairs, command)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Remote MCP endpoint URL")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", "", "Bearer token for a streamable_http server (requires --url)")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "Environment variable for a stdio server, KEY=VALUE (repeatable)")
	return cmd
}

// runMcpAdd implements the add-rule branching of spec.md §6.5:
//
//   - --bearer-token without --url is an error (nothing to authenticate).
//   - --url together with a trailing command is an error (mutually exclusive
//     transports).
//   - --url alone registers a stdio server that shells out to
//     "npx -y mcp-remote <url>".
//   - --url with --bearer-token registers a streamable_http server.
//   - no --url registers a stdio server using the given command argv.
func runMcpAdd(cmd *cobra.Command, name, url, bearerToken string, envPairs, command []string) error {
	if url == "" && bearerToken != "" {
		return fmt.Errorf("--bearer-token requires --url")
	}
	if url != "" && len(command) > 0 {
		return fmt.Errorf("--url and a trailing command are mutually exclusive")
	}
	if url == "" && len(command) == 0 {
		return fmt.Errorf("either --url or a trailing command is required")
	}

	env, err := parseEnvPairs(envPairs)
	if err != nil {
		return err
	}

	var entry config.MCPServerEntry
	switch {
	case url != "" && bearerToken != "":
		entry = config.MCPServerEntry{URL: url, BearerToken: bearerToken}
	case url != "":
		entry = config.MCPServerEntry{Command: "npx", Args: []string{"-y", "mcp-remote", url}, Env: env}
	default:
		entry = config.MCPServerEntry{Command: command[0], Args: command[1:], Env: env}
	}

	home, path, err := config.LoadHome()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if home.MCPServers == nil {
		home.MCPServers = map[string]config.MCPServerEntry{}
	}
	home.MCPServers[name] = entry

	if err := config.SaveHome(path, home); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s: %s\n", name, describeEntry(entry))
	return nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

func buildMcpRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMcpRemove(cmd, args[0])
		},
	}
	return cmd
}

func runMcpRemove(cmd *cobra.Command, name string) error {
	home, path, err := config.LoadHome()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if _, ok := home.MCPServers[name]; !ok {
		return fmt.Errorf("no MCP server named %q", name)
	}
	delete(home.MCPServers, name)

	if err := config.SaveHome(path, home); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	return nil
}
