package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecore/codecore/internal/history"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New("/tmp/work", ApprovalOnRequest, SandboxPolicy{Mode: SandboxWorkspaceWrite}, nil, nil)
}

func TestSession_RecordBridgeEventTruncates(t *testing.T) {
	s := newTestSession(t)
	long := strings.Repeat("x", backgroundNoticeMaxChars+50)
	s.RecordBridgeEvent(long, false)

	require.Equal(t, 1, s.History.Len())
	rec, ok := s.History.Get(history.ID(1))
	require.True(t, ok)
	notice := rec.(history.BackgroundNotice)
	assert.True(t, notice.Truncated)
	assert.LessOrEqual(t, len(notice.Text), backgroundNoticeMaxChars+len("… [truncated]"))
}

func TestSession_ErrorBridgeEventStartsPendingTurnWhenIdle(t *testing.T) {
	s := newTestSession(t)
	s.SetIdle(true)
	s.RecordBridgeEvent("boom", true)

	assert.False(t, s.Idle(), "an idle session observing an error-level bridge event must start a pending-only turn")
	msg, ok := s.Bus.Next()
	require.True(t, ok)
	_, isModelEvent := msg.(interface{ Kind() string })
	assert.True(t, isModelEvent)
}

func TestSession_ErrorBridgeEventDoesNotStartTurnWhenBusy(t *testing.T) {
	s := newTestSession(t)
	s.SetIdle(false)
	s.RecordBridgeEvent("boom", true)

	assert.False(t, s.Idle())
}

func TestSession_MaybeEmitEnvCtxMessages_BaselineThenDeltaOnly(t *testing.T) {
	s := newTestSession(t)
	s.MaybeEmitEnvCtxMessages(map[string]string{"cwd": "/a"}, "main", "medium")
	require.Equal(t, 1, s.History.Len())

	s.MaybeEmitEnvCtxMessages(map[string]string{"cwd": "/a"}, "main", "medium")
	assert.Equal(t, 1, s.History.Len(), "unchanged fingerprint must not emit a second record")

	s.MaybeEmitEnvCtxMessages(map[string]string{"cwd": "/b"}, "main", "medium")
	assert.Equal(t, 2, s.History.Len(), "changed fingerprint must emit exactly one delta")

	rec, _ := s.History.Get(history.ID(2))
	delta := rec.(history.EnvironmentContext)
	assert.True(t, delta.IsDelta)
	assert.Equal(t, "/b", delta.Fields["cwd"])
}

func TestSession_FinalizeCancelledExecsEmitsSyntheticEnd(t *testing.T) {
	s := newTestSession(t)
	order := s.NextOrder()
	s.RegisterExecBegin("call-1", "sub-1", []string{"sleep", "5"}, "/tmp", order)

	idOf := map[string]history.ID{"call-1": history.ID(1)}
	s.FinalizeCancelledExecs(func(callID string) (history.ID, bool) {
		id, ok := idOf[callID]
		return id, ok
	})

	assert.Equal(t, 0, s.Registry.Len())
	rec, ok := s.History.Get(history.ID(1))
	require.True(t, ok)
	exec := rec.(history.Exec)
	assert.Equal(t, history.ExecCancelled, exec.Status)
	assert.Equal(t, 130, exec.ExitCode)
	assert.Equal(t, "Command cancelled by user.", exec.Stderr)
}

func TestSession_FinalizeExecEndReplacesRecordAndUnregisters(t *testing.T) {
	s := newTestSession(t)
	order := s.NextOrder()
	_, id := s.RegisterExecBegin("call-2", "sub-2", []string{"echo", "hi"}, "/tmp", order)

	s.FinalizeExecEnd(id, "call-2", history.ExecSuccess, 0, "hi\n", "")

	assert.Equal(t, 0, s.Registry.Len())
	rec, ok := s.History.Get(id)
	require.True(t, ok)
	exec := rec.(history.Exec)
	assert.Equal(t, history.ExecSuccess, exec.Status)
	assert.Equal(t, "hi\n", exec.Stdout)
}

func TestSession_RegisterAndFinalizeToolCall(t *testing.T) {
	s := newTestSession(t)
	order := s.NextOrder()
	id := s.RegisterToolCallBegin("call-3", "web", "search", order)

	rec, ok := s.History.Get(id)
	require.True(t, ok)
	assert.Equal(t, history.ToolRunning, rec.(history.ToolCall).Status)

	s.FinalizeToolCallEnd(id, `[{"type":"text","text":"ok"}]`, false)

	rec, ok = s.History.Get(id)
	require.True(t, ok)
	call := rec.(history.ToolCall)
	assert.Equal(t, history.ToolSuccess, call.Status)
	assert.False(t, call.IsError)
	assert.Contains(t, call.Result, "ok")
}

func TestSession_AppendImage(t *testing.T) {
	s := newTestSession(t)
	id := s.AppendImage(s.NextOrder(), "image/png", []byte{0x89, 0x50}, "a screenshot")

	rec, ok := s.History.Get(id)
	require.True(t, ok)
	img := rec.(history.Image)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, "a screenshot", img.Alt)
}

func TestTimeBudget_NudgeBands(t *testing.T) {
	deadline := time.Now().Add(90 * time.Second)
	b := TimeBudget{Deadline: deadline}

	// 90s remaining: the tightest band it falls in is 2m.
	text, ok := b.Nudge(deadline.Add(-90 * time.Second))
	require.True(t, ok)
	assert.Contains(t, text, "time is getting tight")

	text, ok = b.Nudge(deadline.Add(-8 * time.Second))
	require.True(t, ok)
	assert.Contains(t, text, "nearly up")
}

func TestTimeBudget_NoDeadlineConfigured(t *testing.T) {
	b := TimeBudget{}
	_, ok := b.Nudge(time.Now())
	assert.False(t, ok)
}
