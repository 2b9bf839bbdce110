package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codecore/codecore/internal/coreerr"
	"github.com/codecore/codecore/internal/observability"
)

// State is a node in the bridge connection state machine (spec.md §4.4.2).
type State string

const (
	StateSearching    State = "searching"
	StateConnecting   State = "connecting"
	StateAuthenticated State = "authenticated"
	StateSubscribed   State = "subscribed"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

const (
	searchPollInterval = 5 * time.Second
	reconnectBackoff   = 5 * time.Second
	handshakeTimeout   = 5 * time.Second
)

// Client drives the bridge connection state machine: discovery,
// authenticated websocket connect, subscribe, and a streaming read
// loop that feeds a batcher. It is safe for exactly one goroutine to
// call Run; Batches and SetSessionOverride may be called
// concurrently from other goroutines.
type Client struct {
	workDir  string
	clientID string
	logger   *slog.Logger

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	controlSend    chan Frame
	sessionOverride SessionOverride
	lastSentFingerprint uint64
	haveSentFingerprint bool

	batches chan []BatchEvent

	dialer func(url string) (*websocket.Conn, error)

	// Metrics is an optional (nil-safe) observability hook, spec.md §4.7's
	// bridge_reconnects_total / bridge_batch_flush_total.
	Metrics *observability.Metrics
}

// NewClient constructs a Client rooted at workDir, the directory to
// start bridge metadata discovery from (typically the session's cwd).
func NewClient(workDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		workDir:  workDir,
		clientID: uuid.NewString(),
		logger:   logger.With("component", "bridge"),
		state:    StateSearching,
		batches:  make(chan []BatchEvent, 16),
	}
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Batches exposes flushed batches of summarized bridge events for the
// session to append to history / evaluate for a pending-only turn.
func (c *Client) Batches() <-chan []BatchEvent {
	return c.batches
}

// SetSessionOverride installs a session-scoped subscription override.
// Per spec.md §4.4.4, once set it unconditionally replaces all three
// effective-subscription fields, including clearing them.
func (c *Client) SetSessionOverride(levels, capabilities []string, llmFilter string) {
	c.mu.Lock()
	c.sessionOverride = SessionOverride{Set: true, Levels: levels, Capabilities: capabilities, LLMFilter: llmFilter}
	c.mu.Unlock()
}

// SendControl forwards a one-off control_request to the bridge host.
// It returns an error unless the client currently holds a live control
// channel; that channel is cleared on disconnect (spec.md §4.4.5).
func (c *Client) SendControl(ctx context.Context, action string, args json.RawMessage) error {
	c.mu.Lock()
	ch := c.controlSend
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("bridge: not connected")
	}

	frame := Frame{Type: FrameControlRequest, ID: uuid.NewString(), Action: action, Args: args}
	select {
	case ch <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the state machine until ctx is cancelled. It never
// returns until then, cycling Searching -> Connecting -> Authenticated
// -> Subscribed -> Streaming -> Reconnecting -> Searching on any
// failure.
func (c *Client) Run(ctx context.Context) {
	batcher := NewBatcher()
	flushTicker := time.NewTicker(250 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		default:
		}

		reconnecting := c.State() == StateReconnecting
		target, err := c.discoverLoop(ctx)
		if err != nil {
			return // ctx cancelled
		}

		if c.Metrics != nil && reconnecting {
			c.Metrics.BridgeReconnects.Inc()
		}

		if err := c.connectAndStream(ctx, target, batcher, flushTicker); err != nil {
			kind, _ := coreerr.KindOf(err)
			c.logger.Warn("bridge connection ended", "error", err, "kind", kind)
		}

		c.mu.Lock()
		c.controlSend = nil
		c.conn = nil
		c.mu.Unlock()

		c.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Client) discoverLoop(ctx context.Context) (*Target, error) {
	c.setState(StateSearching)

	fsEvents, stopWatch := watchMetadataFast(c.workDir, c.logger)
	defer stopWatch()

	for {
		target, err := Discover(c.workDir)
		if err == nil && !target.Stale(time.Now()) {
			return target, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-fsEvents:
			// A write/create under the workspace fired before the next poll
			// tick; re-check immediately instead of waiting out the full
			// searchPollInterval.
		case <-time.After(searchPollInterval):
		}
	}
}

func (c *Client) connectAndStream(ctx context.Context, target *Target, batcher *Batcher, flushTicker *time.Ticker) error {
	c.setState(StateConnecting)

	conn, err := c.dial(target.URL)
	if err != nil {
		return coreerr.New(coreerr.KindTransport, fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()

	if err := c.authenticate(conn, target.Secret); err != nil {
		return coreerr.New(coreerr.KindProtocolTimeout, fmt.Errorf("auth: %w", err))
	}
	c.setState(StateAuthenticated)

	workspaceOverride, _ := LoadWorkspaceOverride(bridgeDirFor(target))
	c.mu.Lock()
	sessionOverride := c.sessionOverride
	c.mu.Unlock()
	effective := Effective(workspaceOverride, sessionOverride)

	if err := c.subscribe(conn, effective); err != nil {
		return coreerr.New(coreerr.KindProtocolTimeout, fmt.Errorf("subscribe: %w", err))
	}
	c.mu.Lock()
	c.lastSentFingerprint = effective.Fingerprint()
	c.haveSentFingerprint = true
	c.conn = conn
	controlSend := make(chan Frame, 32)
	c.controlSend = controlSend
	c.mu.Unlock()
	c.setState(StateSubscribed)

	inbound := make(chan Frame, 64)
	readErrs := make(chan error, 1)
	go c.readLoop(conn, inbound, readErrs)

	c.setState(StateStreaming)
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReasonInterrupt),
				time.Now().Add(time.Second))
			return ctx.Err()

		case err := <-readErrs:
			return coreerr.New(coreerr.KindTransport, err)

		case frame := <-controlSend:
			if err := conn.WriteJSON(frame); err != nil {
				return coreerr.New(coreerr.KindTransport, fmt.Errorf("control send: %w", err))
			}

		case frame := <-inbound:
			batcher.Add(frame, time.Now())
			if batcher.Full() {
				c.flush(batcher, "full")
			}

		case <-flushTicker.C:
			if batcher.ShouldFlush(time.Now()) {
				c.flush(batcher, "window")
			}
			c.maybeResubscribe(conn, target)
		}
	}
}

func (c *Client) flush(batcher *Batcher, reason string) {
	events := batcher.Flush()
	if len(events) == 0 {
		return
	}
	if c.Metrics != nil {
		c.Metrics.BridgeBatchFlush.WithLabelValues(reason).Inc()
	}
	select {
	case c.batches <- events:
	default:
		c.logger.Warn("bridge batch channel full, dropping batch", "events", len(events))
	}
}

// maybeResubscribe resends the subscribe frame only when the effective
// subscription has changed since the last send (spec.md §4.4.4).
func (c *Client) maybeResubscribe(conn *websocket.Conn, target *Target) {
	workspaceOverride, _ := LoadWorkspaceOverride(bridgeDirFor(target))
	c.mu.Lock()
	sessionOverride := c.sessionOverride
	lastFingerprint := c.lastSentFingerprint
	c.mu.Unlock()

	effective := Effective(workspaceOverride, sessionOverride)
	fp := effective.Fingerprint()
	if fp == lastFingerprint {
		return
	}
	if err := c.subscribe(conn, effective); err != nil {
		c.logger.Warn("resubscribe failed", "error", err)
		return
	}
	c.mu.Lock()
	c.lastSentFingerprint = fp
	c.mu.Unlock()
}

func (c *Client) authenticate(conn *websocket.Conn, secret string) error {
	if err := conn.WriteJSON(Frame{Type: FrameAuth, Role: "consumer", Secret: secret, ClientID: c.clientID}); err != nil {
		return err
	}
	return c.expectFrame(conn, FrameAuthSuccess, handshakeTimeout)
}

func (c *Client) subscribe(conn *websocket.Conn, sub Subscription) error {
	if err := conn.WriteJSON(Frame{
		Type:         FrameSubscribe,
		Levels:       sub.Levels,
		Capabilities: sub.Capabilities,
		LLMFilter:    sub.LLMFilter,
	}); err != nil {
		return err
	}
	return c.expectFrame(conn, FrameSubscribeAck, handshakeTimeout)
}

func (c *Client) expectFrame(conn *websocket.Conn, wantType string, timeout time.Duration) error {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return err
	}
	if frame.Type != wantType {
		return fmt.Errorf("expected %q, got %q", wantType, frame.Type)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, inbound chan<- Frame, errs chan<- error) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			errs <- err
			return
		}
		select {
		case inbound <- frame:
		default:
			c.logger.Warn("bridge inbound channel full, dropping frame", "type", frame.Type)
		}
	}
}

func (c *Client) dial(url string) (*websocket.Conn, error) {
	if c.dialer != nil {
		return c.dialer(url)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func bridgeDirFor(target *Target) string {
	return target.BridgeDir()
}
