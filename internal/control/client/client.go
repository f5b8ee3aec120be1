package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Dadams2/AeroSpace/internal/control"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// StatusSnapshot mirrors the daemon's status payload.
	StatusSnapshot = control.StatusSnapshot
	// ResolveResult mirrors the daemon's resolution payload.
	ResolveResult = control.ResolveResult
	// HistoryResult mirrors the daemon's decision history payload.
	HistoryResult = control.HistoryResult
)

// New creates a client that connects to the provided socket path. When
// path is empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the daemon's engine state and metrics counters.
func (c *Client) Status(ctx context.Context) (StatusSnapshot, error) {
	var snapshot StatusSnapshot
	if err := c.do(ctx, control.Request{Action: control.ActionStatusGet}, &snapshot); err != nil {
		return StatusSnapshot{}, err
	}
	return snapshot, nil
}

// Pause stops focus dispatch in the daemon.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionPause}, nil)
}

// Resume re-enables focus dispatch in the daemon.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionResume}, nil)
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

// Resolve asks the daemon which window sits under the point without
// changing focus.
func (c *Client) Resolve(ctx context.Context, x, y float64) (ResolveResult, error) {
	params := map[string]any{"x": x, "y": y}
	var result ResolveResult
	if err := c.do(ctx, control.Request{Action: control.ActionResolve, Params: params}, &result); err != nil {
		return ResolveResult{}, err
	}
	return result, nil
}

// History retrieves the daemon's recent pipeline decisions.
func (c *Client) History(ctx context.Context) (HistoryResult, error) {
	var result HistoryResult
	if err := c.do(ctx, control.Request{Action: control.ActionHistoryGet}, &result); err != nil {
		return HistoryResult{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
