package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/Dadams2/AeroSpace/internal/engine"
	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/metrics"
	"github.com/Dadams2/AeroSpace/internal/util"
)

// Server hosts the daemon's control socket and serves requests.
type Server struct {
	engine     *engine.Engine
	metrics    *metrics.Collector
	logger     *util.Logger
	reload     func(reason string) error
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server. An empty socketPath selects the
// default runtime location.
func NewServer(eng *engine.Engine, coll *metrics.Collector, logger *util.Logger, reload func(reason string) error, socketPath string) (*Server, error) {
	if socketPath == "" {
		var err error
		socketPath, err = DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Server{
		engine:     eng,
		metrics:    coll,
		logger:     logger,
		reload:     reload,
		socketPath: socketPath,
	}, nil
}

// Serve listens on the control socket until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept error: %v", err)
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, context.Canceled
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.writeError(conn, fmt.Errorf("decode request: %w", err))
		return
	}
	switch req.Action {
	case ActionStatusGet:
		s.handleStatus(conn)
	case ActionPause:
		s.engine.Pause()
		s.writeOK(conn, nil)
	case ActionResume:
		s.engine.Resume()
		s.writeOK(conn, nil)
	case ActionReload:
		s.handleReload(conn)
	case ActionResolve:
		s.handleResolve(ctx, conn, req.Params)
	case ActionHistoryGet:
		s.handleHistory(conn)
	default:
		s.writeError(conn, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) handleStatus(conn net.Conn) {
	snapshot := StatusSnapshot{Engine: s.engine.Status()}
	if s.metrics != nil {
		snapshot.Metrics = s.metrics.Snapshot()
	}
	s.writeOK(conn, snapshot)
}

func (s *Server) handleReload(conn net.Conn) {
	if s.reload == nil {
		s.writeError(conn, errors.New("reload not supported"))
		return
	}
	if err := s.reload("control request"); err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, nil)
}

func (s *Server) handleResolve(ctx context.Context, conn net.Conn, params map[string]any) {
	x, okX := params["x"].(float64)
	y, okY := params["y"].(float64)
	if !okX || !okY {
		s.writeError(conn, errors.New("x and y are required"))
		return
	}
	point := layout.Point{X: x, Y: y}
	res, err := s.engine.ResolvePoint(ctx, point)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	result := ResolveResult{Point: point, Resolved: res.Window != nil}
	if res.Window != nil {
		result.WindowID = res.Window.ID
		result.App = res.Window.App
		result.Title = res.Window.Title
		result.Strategy = res.Strategy
	}
	s.writeOK(conn, result)
}

func (s *Server) handleHistory(conn net.Conn) {
	s.writeOK(conn, HistoryResult{Decisions: s.engine.History()})
}

func (s *Server) writeOK(conn net.Conn, data any) {
	resp := Response{Status: StatusOK}
	if data != nil {
		resp.Data = data
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := Response{Status: StatusError}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
