package bridge

import "encoding/json"

// Frame is a single JSON text frame exchanged with the bridge host
// (spec.md §6.1). Only the fields relevant to a given frame type are
// populated.
type Frame struct {
	Type string `json:"type"`

	// auth (outbound)
	Role     string `json:"role,omitempty"`
	Secret   string `json:"secret,omitempty"`
	ClientID string `json:"clientId,omitempty"`

	// subscribe (outbound)
	Levels       []string `json:"levels,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	LLMFilter    string   `json:"llm_filter,omitempty"`

	// control_request (outbound) / control_forwarded / control_result (inbound)
	ID          string          `json:"id,omitempty"`
	Action      string          `json:"action,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
	Code        string          `json:"code,omitempty"`
	TimeoutMS   int64           `json:"timeoutMs,omitempty"`
	ExpectResult bool           `json:"expectResult,omitempty"`
	Delivered   int             `json:"delivered,omitempty"`
	OK          bool            `json:"ok,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *FrameError     `json:"error,omitempty"`

	// screenshot (inbound)
	MIME string `json:"mime,omitempty"`
	Data string `json:"data,omitempty"`

	// event (inbound)
	Level      string `json:"level,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Message    string `json:"message,omitempty"`
	Navigation *struct {
		To string `json:"to,omitempty"`
	} `json:"navigation,omitempty"`
	Route    string `json:"route,omitempty"`
	Platform string `json:"platform,omitempty"`

	// rate_limit_notice (inbound)
	Reason string `json:"reason,omitempty"`
}

// FrameError carries the {message} shape of a control_result error.
type FrameError struct {
	Message string `json:"message"`
}

// Close reason strings sent with websocket close code 1000.
const (
	CloseReasonOK        = "ok"
	CloseReasonDone      = "done"
	CloseReasonInterrupt = "interrupt"
)

// Frame type discriminators.
const (
	FrameAuth            = "auth"
	FrameAuthSuccess     = "auth_success"
	FrameSubscribe       = "subscribe"
	FrameSubscribeAck    = "subscribe_ack"
	FrameControlRequest  = "control_request"
	FrameControlForward  = "control_forwarded"
	FrameControlResult   = "control_result"
	FrameScreenshot      = "screenshot"
	FrameEvent           = "event"
	FrameRateLimitNotice = "rate_limit_notice"
)

// errorLevels marks an event as error-bearing for the purposes of
// triggering a pending-only turn (spec.md §4.4.3).
var errorLevels = map[string]bool{
	"error":    true,
	"errors":   true,
	"err":      true,
	"fatal":    true,
	"critical": true,
	"panic":    true,
}

func isErrorLevel(level string) bool {
	return errorLevels[level]
}
