package bridge

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Subscription describes which bridge event levels and capabilities the
// session wants streamed, and whether the LLM-facing filter is active
// (spec.md §4.4.4).
type Subscription struct {
	Levels       []string `json:"levels"`
	Capabilities []string `json:"capabilities"`
	LLMFilter    string   `json:"llmFilter"`
}

// defaultSubscription is the base layer of the three-way merge.
func defaultSubscription() Subscription {
	return Subscription{
		Levels:       []string{"errors"},
		Capabilities: []string{"console", "error", "pageview", "screenshot", "control"},
		LLMFilter:    "off",
	}
}

// normalize lowercases and sorts Levels/Capabilities so equal sets
// compare equal and fingerprint identically regardless of input order
// (spec.md §6.2).
func (s Subscription) normalize() Subscription {
	return Subscription{
		Levels:       normalizeSet(s.Levels),
		Capabilities: normalizeSet(s.Capabilities),
		LLMFilter:    strings.ToLower(strings.TrimSpace(s.LLMFilter)),
	}
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Fingerprint returns a stable, non-cryptographic hash of the
// normalized subscription, used to decide whether a resubscribe frame
// is needed (spec.md §8: "serialize then parse ... fingerprint
// unchanged"; §9 open question: ordering of levels/capabilities,
// lowercased + sorted, is the sole determinant).
func (s Subscription) Fingerprint() uint64 {
	n := s.normalize()
	h := fnv.New64a()
	h.Write([]byte(strings.Join(n.Levels, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(n.Capabilities, ",")))
	h.Write([]byte{0})
	h.Write([]byte(n.LLMFilter))
	return h.Sum64()
}

// WorkspaceOverride holds the workspace-level subscription file read
// from <bridge_dir>/code-bridge.subscription.json. Only non-empty
// fields replace the base (spec.md §4.4.4).
type WorkspaceOverride struct {
	Levels       []string `json:"levels,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	LLMFilter    string   `json:"llmFilter,omitempty"`
	LLMFilterAlt string   `json:"llm_filter,omitempty"`
}

const subscriptionFileName = "code-bridge.subscription.json"

// LoadWorkspaceOverride reads the workspace subscription override file
// from bridgeDir, if present. A missing file is not an error: it
// simply yields a zero-value override that changes nothing in the
// merge.
func LoadWorkspaceOverride(bridgeDir string) (WorkspaceOverride, error) {
	data, err := os.ReadFile(filepath.Join(bridgeDir, subscriptionFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return WorkspaceOverride{}, nil
		}
		return WorkspaceOverride{}, err
	}

	var override WorkspaceOverride
	if err := json.Unmarshal(data, &override); err != nil {
		return WorkspaceOverride{}, err
	}
	if override.LLMFilter == "" {
		override.LLMFilter = override.LLMFilterAlt
	}
	return override, nil
}

// SessionOverride is the session-scoped override set via the control
// channel. Unlike the workspace override, a session override — once
// present — unconditionally replaces all three fields, including
// clearing them to empty (spec.md §4.4.4).
type SessionOverride struct {
	Set          bool
	Levels       []string
	Capabilities []string
	LLMFilter    string
}

// Effective computes the merged subscription per spec.md §4.4.4:
// base := defaults; workspace replaces non-empty fields; session, if
// set, unconditionally replaces all three fields.
func Effective(workspace WorkspaceOverride, session SessionOverride) Subscription {
	eff := defaultSubscription()

	if len(workspace.Levels) > 0 {
		eff.Levels = workspace.Levels
	}
	if len(workspace.Capabilities) > 0 {
		eff.Capabilities = workspace.Capabilities
	}
	if workspace.LLMFilter != "" {
		eff.LLMFilter = workspace.LLMFilter
	}

	if session.Set {
		eff.Levels = session.Levels
		eff.Capabilities = session.Capabilities
		eff.LLMFilter = session.LLMFilter
	}

	return eff.normalize()
}
