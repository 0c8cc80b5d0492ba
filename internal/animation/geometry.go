package animation

// Rect is an element's box in viewport coordinates (CSS pixels).
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) right() float64  { return r.X + r.Width }
func (r Rect) bottom() float64 { return r.Y + r.Height }

// Margin grows (positive) or shrinks (negative) the root box, like an
// IntersectionObserver rootMargin.
type Margin struct {
	Top, Right, Bottom, Left float64
}

func (m Margin) apply(r Rect) Rect {
	return Rect{
		X:      r.X - m.Left,
		Y:      r.Y - m.Top,
		Width:  r.Width + m.Left + m.Right,
		Height: r.Height + m.Top + m.Bottom,
	}
}

// IntersectionRatio returns the visible fraction of el inside root.
// Zero-area elements count as fully visible when they lie inside root.
func IntersectionRatio(el, root Rect) float64 {
	x0, x1 := max(el.X, root.X), min(el.right(), root.right())
	y0, y1 := max(el.Y, root.Y), min(el.bottom(), root.bottom())
	if x1 < x0 || y1 < y0 {
		return 0
	}
	area := el.Width * el.Height
	if area <= 0 {
		return 1
	}
	return (x1 - x0) * (y1 - y0) / area
}
