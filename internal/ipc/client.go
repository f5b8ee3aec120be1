package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/state"
)

// request and response mirror the server's client protocol: a JSON argv
// in, exit code plus captured output back. Query payloads ride in stdout.
type request struct {
	Args  []string `json:"args"`
	Stdin string   `json:"stdin,omitempty"`
}

type response struct {
	ExitCode             int    `json:"exitCode"`
	Stdout               string `json:"stdout"`
	Stderr               string `json:"stderr"`
	ServerVersionAndHash string `json:"serverVersionAndHash"`
}

const defaultCommandTimeout = 3 * time.Second

// Client speaks the window server's command socket, one connection per
// request.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the server command socket.
func NewClient() *Client {
	return &Client{socketPath: CommandSocketPath(), timeout: defaultCommandTimeout}
}

// SocketPath reports where the client connects.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// CommandSocketPath resolves the command socket location, honoring the
// AEROSPACE_SOCKET override.
func CommandSocketPath() string {
	if path := os.Getenv("AEROSPACE_SOCKET"); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("aerospace-%s.sock", socketUser()))
}

// EventSocketPath resolves the event socket location, honoring the
// AEROSPACE_EVENTS_SOCKET override.
func EventSocketPath() string {
	if path := os.Getenv("AEROSPACE_EVENTS_SOCKET"); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("aerospace-events-%s.sock", socketUser()))
}

func socketUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect command socket: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	if err := json.NewEncoder(conn).Encode(request{Args: args}); err != nil {
		return nil, fmt.Errorf("send %s: %w", strings.Join(args, " "), err)
	}
	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", strings.Join(args, " "), err)
	}
	if resp.ExitCode != 0 {
		msg := strings.TrimSpace(resp.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(resp.Stdout)
		}
		return nil, fmt.Errorf("%s: exit %d: %s", strings.Join(args, " "), resp.ExitCode, msg)
	}
	return []byte(resp.Stdout), nil
}

type rawRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r rawRect) rect() layout.Rect {
	return layout.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// ListWindows returns all windows the server tracks.
func (c *Client) ListWindows(ctx context.Context) ([]state.Window, error) {
	data, err := c.run(ctx, "list-windows", "--all", "--json")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		WindowID uint32  `json:"window-id"`
		AppName  string  `json:"app-name"`
		Title    string  `json:"window-title"`
		Work     string  `json:"workspace"`
		Floating bool    `json:"is-floating"`
		Frame    rawRect `json:"frame"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode list-windows: %w", err)
	}
	windows := make([]state.Window, 0, len(raw))
	for _, w := range raw {
		windows = append(windows, state.Window{
			ID:        w.WindowID,
			App:       w.AppName,
			Title:     w.Title,
			Workspace: w.Work,
			Floating:  w.Floating,
			Frame:     w.Frame.rect(),
		})
	}
	return windows, nil
}

// ListWorkspaces returns all workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]state.Workspace, error) {
	data, err := c.run(ctx, "list-workspaces", "--all", "--json")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID        int    `json:"workspace-id"`
		Name      string `json:"workspace"`
		MonitorID int    `json:"monitor-id"`
		Visible   bool   `json:"is-visible"`
		MRU       uint32 `json:"mru-window-id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode list-workspaces: %w", err)
	}
	workspaces := make([]state.Workspace, 0, len(raw))
	for _, ws := range raw {
		workspaces = append(workspaces, state.Workspace{
			ID:          ws.ID,
			Name:        ws.Name,
			MonitorID:   ws.MonitorID,
			Visible:     ws.Visible,
			MRUWindowID: ws.MRU,
		})
	}
	return workspaces, nil
}

// ListMonitors returns monitor snapshots.
func (c *Client) ListMonitors(ctx context.Context) ([]state.Monitor, error) {
	data, err := c.run(ctx, "list-monitors", "--json")
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID           int     `json:"monitor-id"`
		Name         string  `json:"monitor-name"`
		Main         bool    `json:"is-main"`
		Frame        rawRect `json:"frame"`
		VisibleFrame rawRect `json:"visible-frame"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode list-monitors: %w", err)
	}
	monitors := make([]state.Monitor, 0, len(raw))
	for _, m := range raw {
		monitors = append(monitors, state.Monitor{
			ID:           m.ID,
			Name:         m.Name,
			Main:         m.Main,
			Frame:        m.Frame.rect(),
			VisibleFrame: m.VisibleFrame.rect(),
		})
	}
	return monitors, nil
}

// FocusedWindowID returns the focused window id, 0 when nothing holds
// focus.
func (c *Client) FocusedWindowID(ctx context.Context) (uint32, error) {
	data, err := c.run(ctx, "focused-window", "--json")
	if err != nil {
		return 0, err
	}
	var payload struct {
		WindowID uint32 `json:"window-id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("decode focused-window: %w", err)
	}
	return payload.WindowID, nil
}

// WindowAt asks the server for the topmost window at the point via its
// accessibility hit test. The second return is false when the hit test
// found no window, which is a routine miss rather than an error.
func (c *Client) WindowAt(ctx context.Context, p layout.Point) (uint32, bool, error) {
	data, err := c.run(ctx, "window-at", formatCoord(p.X), formatCoord(p.Y), "--json")
	if err != nil {
		return 0, false, err
	}
	var payload struct {
		WindowID uint32 `json:"window-id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, false, fmt.Errorf("decode window-at: %w", err)
	}
	if payload.WindowID == 0 {
		return 0, false, nil
	}
	return payload.WindowID, true, nil
}

// MouseState reports the manipulated window and primary button state.
func (c *Client) MouseState(ctx context.Context) (state.MouseState, error) {
	data, err := c.run(ctx, "mouse-state", "--json")
	if err != nil {
		return state.MouseState{}, err
	}
	var payload struct {
		Manipulated uint32 `json:"manipulated-window-id"`
		ButtonDown  bool   `json:"button-down"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return state.MouseState{}, fmt.Errorf("decode mouse-state: %w", err)
	}
	return state.MouseState{ManipulatedWindowID: payload.Manipulated, ButtonDown: payload.ButtonDown}, nil
}

// AutomationEnabled reports whether the server currently permits focus
// automation.
func (c *Client) AutomationEnabled(ctx context.Context) (bool, error) {
	data, err := c.run(ctx, "server-status", "--json")
	if err != nil {
		return false, err
	}
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Errorf("decode server-status: %w", err)
	}
	return payload.Enabled, nil
}

// FocusWindow asks the server to focus the window. The source tags the
// resulting focus-changed event so subscribers can tell their own
// commands apart from keyboard ones.
func (c *Client) FocusWindow(ctx context.Context, id uint32, source string) error {
	_, err := c.run(ctx, "focus", "--window-id", strconv.FormatUint(uint64(id), 10), "--source", source)
	return err
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ state.DataSource = (*Client)(nil)
