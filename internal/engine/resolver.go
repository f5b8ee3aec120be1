package engine

import (
	"context"

	"github.com/Dadams2/AeroSpace/internal/layout"
	"github.com/Dadams2/AeroSpace/internal/state"
)

// Strategy names reported alongside a resolution.
const (
	StrategyHitTest  = "hit-test"
	StrategyFloating = "floating-score"
	StrategyTiled    = "tiled-geometry"
)

// Scoring terms for the floating-window heuristic. Recency dominates
// outright, window size separates stacks of different-sized windows,
// and proximity to the center breaks near-ties.
const (
	recencyBonus     = 1000.0
	sizeCeiling      = 1_000_000.0
	sizeScale        = 1000.0
	proximityCeiling = 1000.0
	proximityScale   = 10.0
)

// Resolution is the outcome of one window lookup: the matched window,
// if any, and the strategy that produced it.
type Resolution struct {
	Window   *state.Window
	Strategy string
}

// hitTester is the accessibility primitive behind the primary strategy.
type hitTester interface {
	WindowAt(ctx context.Context, p layout.Point) (uint32, bool, error)
}

// Resolver finds the window under a point. Strategies run in order:
// the server's accessibility hit test, then a scored heuristic over
// floating windows, then the tiled layout's geometry. Each strategy
// falls through softly when it cannot answer.
type Resolver struct {
	hitTest hitTester
}

// NewResolver builds a resolver over the given hit-test source, which
// may be nil to disable the accessibility strategy.
func NewResolver(hitTest hitTester) *Resolver {
	return &Resolver{hitTest: hitTest}
}

// Resolve returns the window under p within the snapshot, or a zero
// Resolution when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, world *state.World, p layout.Point) Resolution {
	if win := r.resolveHitTest(ctx, world, p); win != nil {
		return Resolution{Window: win, Strategy: StrategyHitTest}
	}
	ws := world.WorkspaceForPoint(p)
	if ws == nil {
		return Resolution{}
	}
	if win := resolveFloating(world, ws, p); win != nil {
		return Resolution{Window: win, Strategy: StrategyFloating}
	}
	if win := resolveTiled(world, ws, p); win != nil {
		return Resolution{Window: win, Strategy: StrategyTiled}
	}
	return Resolution{}
}

func (r *Resolver) resolveHitTest(ctx context.Context, world *state.World, p layout.Point) *state.Window {
	if r.hitTest == nil {
		return nil
	}
	id, ok, err := r.hitTest.WindowAt(ctx, p)
	if err != nil || !ok {
		return nil
	}
	// The hit test reflects true stacking order but can name windows
	// the snapshot does not know about; those count as misses.
	return world.FindWindow(id)
}

func resolveFloating(world *state.World, ws *state.Workspace, p layout.Point) *state.Window {
	var best *state.Window
	bestScore := 0.0
	for i := range world.Windows {
		win := &world.Windows[i]
		if win.Workspace != ws.Name || !win.Floating {
			continue
		}
		if win.Frame.IsZero() || !win.Frame.Contains(p) {
			continue
		}
		score := scoreFloating(win, ws, p)
		// Strictly greater keeps the first candidate on exact ties.
		if best == nil || score > bestScore {
			best = win
			bestScore = score
		}
	}
	return best
}

func scoreFloating(win *state.Window, ws *state.Workspace, p layout.Point) float64 {
	score := (sizeCeiling - win.Frame.Area()) / sizeScale
	score += (proximityCeiling - layout.Distance(p, win.Frame.Center())) / proximityScale
	if ws.MRUWindowID != 0 && win.ID == ws.MRUWindowID {
		score += recencyBonus
	}
	return score
}

func resolveTiled(world *state.World, ws *state.Workspace, p layout.Point) *state.Window {
	for i := range world.Windows {
		win := &world.Windows[i]
		if win.Workspace != ws.Name || win.Floating {
			continue
		}
		if win.Frame.IsZero() || !win.Frame.Contains(p) {
			continue
		}
		// Tiled windows never overlap, so the first containing frame
		// is the only one.
		return win
	}
	return nil
}
