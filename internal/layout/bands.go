package layout

// MenuBarBand returns the strip a menu bar occupies at the top of a
// monitor: everything between the frame's top edge and the visible
// frame's top edge. Empty when the visible frame starts at the top.
func MenuBarBand(frame, visible Rect) Rect {
	height := visible.Y - frame.Y
	if height <= 0 {
		return Rect{}
	}
	return Rect{X: frame.X, Y: frame.Y, Width: frame.Width, Height: height}
}

// DockBand returns the strip between the visible frame's bottom edge and
// the frame's bottom edge, the space a bottom dock occupies. The second
// return is false when the strip is empty, meaning the dock is hidden or
// parked on another edge.
func DockBand(frame, visible Rect) (Rect, bool) {
	height := frame.Bottom() - visible.Bottom()
	if height <= 0 {
		return Rect{}, false
	}
	return Rect{X: frame.X, Y: visible.Bottom(), Width: frame.Width, Height: height}, true
}
