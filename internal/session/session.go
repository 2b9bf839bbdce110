// Package session is the ground-truth authority for a single conversation:
// policy, transcript, the running-exec registry, bridge subscription
// overrides, and time budget. State mutations happen under a coarse lock
// held only for the duration of struct updates; I/O is always performed
// outside the lock.
package session

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codecore/codecore/internal/eventbus"
	"github.com/codecore/codecore/internal/history"
)

// backgroundNoticeMaxChars bounds a single bridge-sourced background notice
// before a trailing truncation indicator is appended (spec.md §4.2).
const backgroundNoticeMaxChars = 1200

// ModelClient is the minimal surface the Session needs from a remote model
// backend. No implementation lives in this module; callers supply one
// (cmd/codecore passes nil).
type ModelClient interface {
	// StreamTurn starts a turn and returns once the model begins emitting
	// eventbus.ModelEvent values onto bus; cancellation is via ctx.
	StreamTurn(ctx context.Context, bus *eventbus.Bus, turn TurnContext, input string) error
}

// ClientTool is a locally-registered tool the session may expose to the
// model in addition to MCP servers.
type ClientTool struct {
	Name        string
	Description string
}

// Session is the conversation container: id, policy, transcript, running
// execs, bridge subscription overrides, time budget, and the model client
// handle. Owns all child runtime objects.
type Session struct {
	ID      string
	Cwd     string
	Logger  *slog.Logger

	mu               sync.Mutex
	approval         ApprovalPolicy
	sandbox          SandboxPolicy
	shellEnv         map[string]string
	timeBudget       TimeBudget
	clientTools      []ClientTool
	envBaseline      map[string]string
	envBaselineSent  bool
	lastGitBranch    string
	lastReasoning    string
	idle             atomic.Bool

	model ModelClient

	Bus      *eventbus.Bus
	History  *history.Store
	Registry *history.Registry

	reqOrdinal atomic.Int64
}

// New constructs a Session. A fresh Event Bus, history Store, and
// running-exec Registry are created and owned by the Session.
func New(cwd string, approval ApprovalPolicy, sandbox SandboxPolicy, model ModelClient, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ID:       uuid.NewString(),
		Cwd:      cwd,
		Logger:   logger.With("component", "session"),
		approval: approval,
		sandbox:  sandbox,
		shellEnv: map[string]string{},
		model:    model,
		Bus:      eventbus.New(),
		History:  history.NewStore(),
		Registry: history.NewRegistry(),
	}
	s.idle.Store(true)
	return s
}

// NextOrder allocates the next OrderMeta for a new turn's first event; the
// caller is responsible for incrementing OutputIndex/SequenceNumber for
// subsequent events within the same request.
func (s *Session) NextOrder() history.OrderMeta {
	ord := s.reqOrdinal.Add(1)
	return history.OrderMeta{RequestOrdinal: ord}
}

// ApprovalPolicy returns the session's current approval policy.
func (s *Session) ApprovalPolicy() ApprovalPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approval
}

// SandboxPolicy returns the session's current sandbox policy.
func (s *Session) SandboxPolicy() SandboxPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sandbox
}

// SetIdle updates whether the session is between turns. The Bridge Client
// and background-notice path consult this to decide whether to start a
// pending-only turn.
func (s *Session) SetIdle(idle bool) { s.idle.Store(idle) }

// Idle reports whether the session is currently between turns.
func (s *Session) Idle() bool { return s.idle.Load() }

// RecordBridgeEvent appends a background notice to history, bounded to
// ~1200 chars with a trailing truncation indicator. If the text was
// observed at error level and the session is idle, a pending-only turn is
// started so the model sees the notice without a fabricated user message.
func (s *Session) RecordBridgeEvent(text string, isError bool) {
	truncated := false
	if len(text) > backgroundNoticeMaxChars {
		text = text[:backgroundNoticeMaxChars] + "… [truncated]"
		truncated = true
	}

	rec := history.BackgroundNotice{
		Base:      history.Base{ID: s.History.NextID(), Order: s.NextOrder()},
		Text:      text,
		Truncated: truncated,
	}
	s.History.Append(rec)

	if isError && s.Idle() {
		s.StartPendingOnlyTurnIfIdle(context.Background())
	}
}

// StartPendingOnlyTurnIfIdle enqueues an empty UserInput turn so the model
// sees only accumulated developer/system notices, but only if the session
// is currently idle. No fabricated visible user message is produced.
func (s *Session) StartPendingOnlyTurnIfIdle(ctx context.Context) bool {
	if !s.Idle() {
		return false
	}
	s.SetIdle(false)
	s.Bus.SendHigh(eventbus.ModelEvent{SubmissionID: uuid.NewString(), Payload: pendingOnlyTurn{}})
	return true
}

type pendingOnlyTurn struct{}

// MaybeEmitEnvCtxMessages compares the given environment fingerprint with
// the stored baseline/delta, emitting a full EnvironmentContext snapshot
// once per session and subsequent deltas only when fingerprints change.
func (s *Session) MaybeEmitEnvCtxMessages(env map[string]string, gitBranch, reasoning string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.envBaselineSent {
		s.envBaseline = cloneMap(env)
		s.envBaselineSent = true
		s.lastGitBranch = gitBranch
		s.lastReasoning = reasoning
		s.appendEnvRecordLocked(env, false)
		return
	}

	if mapsEqual(env, s.envBaseline) && gitBranch == s.lastGitBranch && reasoning == s.lastReasoning {
		return
	}

	delta := diffMaps(s.envBaseline, env)
	if gitBranch != s.lastGitBranch {
		delta["git_branch"] = gitBranch
	}
	if reasoning != s.lastReasoning {
		delta["reasoning_effort"] = reasoning
	}
	s.envBaseline = cloneMap(env)
	s.lastGitBranch = gitBranch
	s.lastReasoning = reasoning
	if len(delta) > 0 {
		s.appendEnvRecordLocked(delta, true)
	}
}

func (s *Session) appendEnvRecordLocked(fields map[string]string, isDelta bool) {
	rec := history.EnvironmentContext{
		Base:    history.Base{ID: s.History.NextID(), Order: s.NextOrder()},
		IsDelta: isDelta,
		Fields:  fields,
	}
	s.History.Append(rec)
}

// TurnStatusItem is one ephemeral, per-turn item assembled by
// BuildTurnStatusItems: sent with each turn but never persisted to history.
type TurnStatusItem struct {
	Kind string // "environment", "browser_snapshot", "time_budget"
	Text string
}

// BuildTurnStatusItems assembles the ephemeral items sent alongside each
// turn: environment context, gated browser snapshot, and time-budget
// nudges. None of these are persisted to the transcript.
func (s *Session) BuildTurnStatusItems(now time.Time, browserSnapshotHash uint64, lastSentHash *uint64) []TurnStatusItem {
	var items []TurnStatusItem

	s.mu.Lock()
	budget := s.timeBudget
	s.mu.Unlock()

	if text, ok := budget.Nudge(now); ok {
		items = append(items, TurnStatusItem{Kind: "time_budget", Text: text})
	}

	if lastSentHash != nil && *lastSentHash != browserSnapshotHash {
		items = append(items, TurnStatusItem{Kind: "browser_snapshot", Text: fmt.Sprintf("browser state changed (hash %x)", browserSnapshotHash)})
		*lastSentHash = browserSnapshotHash
	}

	return items
}

// SetTimeBudget configures the session's deadline.
func (s *Session) SetTimeBudget(b TimeBudget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeBudget = b
}

// Nudge reports the current time-budget advisory, if any, as of now.
func (s *Session) Nudge(now time.Time) (string, bool) {
	s.mu.Lock()
	budget := s.timeBudget
	s.mu.Unlock()
	return budget.Nudge(now)
}

// RegisterExecBegin registers a running exec in the registry and appends a
// Running Exec record to the transcript in one step, returning the
// registry entry for later cancellation/finalization along with the
// history ID the caller needs to finalize that same record via
// FinalizeExecEnd.
func (s *Session) RegisterExecBegin(callID, submissionID string, command []string, cwd string, order history.OrderMeta) (*history.RunningExecMeta, history.ID) {
	meta := s.Registry.Register(callID, submissionID, order)
	id := s.History.NextID()
	rec := history.Exec{
		Base:    history.Base{ID: id, Order: order},
		CallID:  callID,
		Command: command,
		Cwd:     cwd,
		Status:  history.ExecRunning,
	}
	s.History.Append(rec)
	return meta, id
}

// FinalizeExecEnd replaces the Running Exec record at id with its terminal
// status and output once a Runner reports an EndEvent, and unregisters the
// call from the running-exec registry.
func (s *Session) FinalizeExecEnd(id history.ID, callID string, end history.ExecStatus, exitCode int, stdout, stderr string) {
	if rec, ok := s.History.Get(id); ok {
		if execRec, isExec := rec.(history.Exec); isExec {
			execRec.Status = end
			execRec.ExitCode = exitCode
			execRec.Stdout = stdout
			execRec.Stderr = stderr
			s.History.Replace(id, execRec)
		}
	}
	s.Registry.Unregister(callID)
}

// RegisterToolCallBegin appends a Running ToolCall record to the
// transcript for an MCP tool invocation (spec.md §4.3.3) and returns its
// history ID for FinalizeToolCallEnd.
func (s *Session) RegisterToolCallBegin(callID, server, tool string, order history.OrderMeta) history.ID {
	id := s.History.NextID()
	s.History.Append(history.ToolCall{
		Base:   history.Base{ID: id, Order: order},
		CallID: callID,
		Server: server,
		Tool:   tool,
		Status: history.ToolRunning,
	})
	return id
}

// FinalizeToolCallEnd replaces the Running ToolCall record at id with its
// terminal status and result text once the MCP manager returns.
func (s *Session) FinalizeToolCallEnd(id history.ID, result string, isError bool) {
	rec, ok := s.History.Get(id)
	if !ok {
		return
	}
	call, isCall := rec.(history.ToolCall)
	if !isCall {
		return
	}
	call.Result = result
	call.IsError = isError
	if isError {
		call.Status = history.ToolFailed
	} else {
		call.Status = history.ToolSuccess
	}
	s.History.Replace(id, call)
}

// AppendImage appends an image record synthesized from an image-bearing
// MCP tool result (spec.md §4.3.3).
func (s *Session) AppendImage(order history.OrderMeta, mime string, data []byte, alt string) history.ID {
	id := s.History.NextID()
	s.History.Append(history.Image{
		Base: history.Base{ID: id, Order: order},
		MIME: mime,
		Data: data,
		Alt:  alt,
	})
	return id
}

// FinalizeCancelledExecs drains the running-exec registry, emitting a
// synthetic End with exit code 130 and "Command cancelled by user." for
// every entry that has not yet emitted one. Used both for explicit user
// cancellation and for the TaskComplete/Error drain invariant (spec.md
// §3.2).
func (s *Session) FinalizeCancelledExecs(historyIDOf func(callID string) (history.ID, bool)) {
	for _, meta := range s.Registry.Snapshot() {
		if !meta.MarkEndEmitted() {
			s.Registry.Unregister(meta.CallID)
			continue
		}
		id, found := historyIDOf(meta.CallID)
		if found {
			if rec, ok := s.History.Get(id); ok {
				if exec, isExec := rec.(history.Exec); isExec {
					exec.Status = history.ExecCancelled
					exec.ExitCode = 130
					exec.Stderr = "Command cancelled by user."
					s.History.Replace(id, exec)
				}
			}
		}
		s.Registry.Unregister(meta.CallID)
	}
}

// ToolNameSuffix returns a short SHA1-derived disambiguation suffix for MCP
// tool-name sanitization collisions (spec.md §4.3.3), shared here because
// both the Session's tool roster and internal/mcp consult it.
func ToolNameSuffix(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:8]
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func diffMaps(old, next map[string]string) map[string]string {
	delta := map[string]string{}
	for k, v := range next {
		if old[k] != v {
			delta[k] = v
		}
	}
	return delta
}
