package state

import (
	"context"

	"github.com/Dadams2/AeroSpace/internal/layout"
)

// Window describes a window tracked by the window server. Frame is the
// last applied bounds; a zero rect means the server has not reported
// geometry for it yet.
type Window struct {
	ID        uint32
	App       string
	Title     string
	Workspace string
	Floating  bool
	Frame     layout.Rect
}

// Workspace describes a named workspace bound to a monitor.
// MRUWindowID is the most recently focused window in the workspace,
// recursively through its tiling tree; 0 when the workspace is empty.
type Workspace struct {
	ID          int
	Name        string
	MonitorID   int
	Visible     bool
	MRUWindowID uint32
}

// Monitor describes a display. VisibleFrame is Frame minus the menu bar
// and dock strips.
type Monitor struct {
	ID           int
	Name         string
	Frame        layout.Rect
	VisibleFrame layout.Rect
	Main         bool
}

// MouseState mirrors the server's view of the pointer: which window is
// being dragged or resized (0 for none) and whether the primary button
// is currently held.
type MouseState struct {
	ManipulatedWindowID uint32
	ButtonDown          bool
}

// World represents one snapshot of the server's window tree.
type World struct {
	Windows         []Window
	Workspaces      []Workspace
	Monitors        []Monitor
	FocusedWindowID uint32
}

// DataSource abstracts the queries required to build a world snapshot.
type DataSource interface {
	ListWindows(ctx context.Context) ([]Window, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	ListMonitors(ctx context.Context) ([]Monitor, error)
	FocusedWindowID(ctx context.Context) (uint32, error)
}

// NewWorld creates a world snapshot using the provided data source.
// Windows reported without a workspace, which the server does while a
// window is between workspaces, are attributed to the main monitor's
// visible workspace so resolution never loses them.
func NewWorld(ctx context.Context, src DataSource) (*World, error) {
	windows, err := src.ListWindows(ctx)
	if err != nil {
		return nil, err
	}
	workspaces, err := src.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	monitors, err := src.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}
	focused, err := src.FocusedWindowID(ctx)
	if err != nil {
		return nil, err
	}
	world := &World{
		Windows:         windows,
		Workspaces:      workspaces,
		Monitors:        monitors,
		FocusedWindowID: focused,
	}
	if fallback := world.mainVisibleWorkspaceName(); fallback != "" {
		for i := range world.Windows {
			if world.Windows[i].Workspace == "" {
				world.Windows[i].Workspace = fallback
			}
		}
	}
	return world, nil
}

func (w *World) mainVisibleWorkspaceName() string {
	main := w.MainMonitor()
	if main == nil {
		return ""
	}
	if ws := w.VisibleWorkspaceOn(main.ID); ws != nil {
		return ws.Name
	}
	return ""
}

// FindWindow returns the window with id, or nil.
func (w *World) FindWindow(id uint32) *Window {
	for i := range w.Windows {
		if w.Windows[i].ID == id {
			return &w.Windows[i]
		}
	}
	return nil
}

// FocusedWindow returns the currently focused window if present.
func (w *World) FocusedWindow() *Window {
	if w.FocusedWindowID == 0 {
		return nil
	}
	return w.FindWindow(w.FocusedWindowID)
}

// WorkspaceByName finds a workspace by name.
func (w *World) WorkspaceByName(name string) *Workspace {
	for i := range w.Workspaces {
		if w.Workspaces[i].Name == name {
			return &w.Workspaces[i]
		}
	}
	return nil
}

// MainMonitor returns the monitor flagged as main, falling back to the
// first monitor when the server reports none.
func (w *World) MainMonitor() *Monitor {
	for i := range w.Monitors {
		if w.Monitors[i].Main {
			return &w.Monitors[i]
		}
	}
	if len(w.Monitors) == 0 {
		return nil
	}
	return &w.Monitors[0]
}

// MonitorForPoint returns the monitor containing p. Points in the dead
// zones between displays map to the nearest monitor by frame distance,
// so a pointer pinned to an edge still resolves.
func (w *World) MonitorForPoint(p layout.Point) *Monitor {
	var nearest *Monitor
	nearestDist := 0.0
	for i := range w.Monitors {
		m := &w.Monitors[i]
		if m.Frame.Contains(p) {
			return m
		}
		d := layout.DistanceToRect(p, m.Frame)
		if nearest == nil || d < nearestDist {
			nearest = m
			nearestDist = d
		}
	}
	return nearest
}

// VisibleWorkspaceOn returns the workspace currently shown on the
// monitor, or nil when the server reports none.
func (w *World) VisibleWorkspaceOn(monitorID int) *Workspace {
	for i := range w.Workspaces {
		ws := &w.Workspaces[i]
		if ws.MonitorID == monitorID && ws.Visible {
			return ws
		}
	}
	return nil
}

// WorkspaceForPoint resolves the workspace owning the monitor under p.
func (w *World) WorkspaceForPoint(p layout.Point) *Workspace {
	mon := w.MonitorForPoint(p)
	if mon == nil {
		return nil
	}
	return w.VisibleWorkspaceOn(mon.ID)
}
