// Package bridge maintains a consumer-role websocket connection to a
// locally running bridge host that streams browser telemetry and
// accepts control messages.
package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// staleThreshold is the maximum age of a heartbeat before bridge
// metadata is considered stale (spec.md §4.4.1 / §8: exactly 20000ms is
// not stale, 20001ms is).
const staleThreshold = 20 * time.Second

const metadataFileName = ".code/code-bridge.json"

// Target is discovered bridge metadata read from a workspace's
// .code/code-bridge.json file.
type Target struct {
	URL           string `json:"url"`
	Secret        string `json:"secret"`
	Port          int    `json:"port,omitempty"`
	WorkspacePath string `json:"workspacePath,omitempty"`
	StartedAt     int64  `json:"startedAt,omitempty"`
	HeartbeatAt   int64  `json:"heartbeatAt,omitempty"`
	PID           int    `json:"pid,omitempty"`

	// fileModTime backs the mtime fallback staleness check when
	// heartbeatAt is absent from the file.
	fileModTime time.Time

	// bridgeDir is the directory code-bridge.json was found in — also
	// where code-bridge.subscription.json lives.
	bridgeDir string
}

// BridgeDir returns the directory the metadata file was discovered in.
func (t *Target) BridgeDir() string {
	return t.bridgeDir
}

// ErrNotFound indicates no bridge metadata file exists along the
// searched path.
var ErrNotFound = errors.New("bridge: no code-bridge.json found")

// Discover walks startDir and its parents looking for
// <dir>/.code/code-bridge.json, per spec.md §4.4.1.
func Discover(startDir string) (*Target, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		candidate := filepath.Join(dir, metadataFileName)
		if info, statErr := os.Stat(candidate); statErr == nil {
			data, readErr := os.ReadFile(candidate)
			if readErr != nil {
				return nil, readErr
			}
			var target Target
			if jsonErr := json.Unmarshal(data, &target); jsonErr != nil {
				return nil, jsonErr
			}
			target.fileModTime = info.ModTime()
			target.bridgeDir = filepath.Join(dir, ".code")
			return &target, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotFound
		}
		dir = parent
	}
}

// watchMetadataFast watches workDir for filesystem activity and returns a
// channel that fires on every event, supplementing discoverLoop's 5s poll
// with an immediate wake-up when the bridge host writes its metadata file,
// per spec.md §4.4.1's discovery note. If the watcher can't be created
// (e.g. inotify limits), the returned channel simply never fires and
// discovery falls back to pure polling.
func watchMetadataFast(workDir string, logger *slog.Logger) (<-chan struct{}, func()) {
	events := make(chan struct{}, 1)
	noop := func() {}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if logger != nil {
			logger.Debug("bridge metadata watcher unavailable, falling back to polling", "error", err)
		}
		return events, noop
	}
	if err := watcher.Add(workDir); err != nil {
		watcher.Close()
		return events, noop
	}
	// .code is typically created after workDir already exists; watch it too
	// once present so file writes inside it are also observed directly.
	_ = watcher.Add(filepath.Join(workDir, ".code"))

	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case events <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, func() { watcher.Close() }
}

// Stale reports whether the metadata's heartbeat is older than
// staleThreshold. When HeartbeatAt is zero (absent from the file), the
// file's modification time is used as a fallback per spec.md §4.4.1.
func (t *Target) Stale(now time.Time) bool {
	if t.HeartbeatAt > 0 {
		return now.UnixMilli()-t.HeartbeatAt > staleThreshold.Milliseconds()
	}
	if !t.fileModTime.IsZero() {
		return now.Sub(t.fileModTime) > staleThreshold
	}
	return true
}
