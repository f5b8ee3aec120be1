package control

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// Action names supported by the control protocol.
	ActionStatusGet  = "status.get"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionReload     = "reload"
	ActionResolve    = "resolve"
	ActionHistoryGet = "history.get"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// StatusSnapshot bundles the engine view with the metrics counters.
type StatusSnapshot struct {
	Engine  engine.Status    `json:"engine"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// ResolveResult names the window under a point and the strategy that
// found it. Resolution over the control socket never dispatches focus.
type ResolveResult struct {
	Point    layout.Point `json:"point"`
	Resolved bool         `json:"resolved"`
	WindowID uint32       `json:"windowId,omitempty"`
	App      string       `json:"app,omitempty"`
	Title    string       `json:"title,omitempty"`
	Strategy string       `json:"strategy,omitempty"`
}

// HistoryResult carries the retained pipeline decisions, newest last.
type HistoryResult struct {
	Decisions []engine.Decision `json:"decisions"`
}

// DefaultSocketPath returns the expected location of the control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("AEROSPACE_FFM_CONTROL_SOCKET"); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "aerospace-ffm", SocketFileName), nil
}
