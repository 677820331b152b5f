package prefetch

// Window sizes the prefetch and retention ranges around the cursor.
type Window struct {
	PrevRadius int `json:"prevRadius"`
	NextRadius int `json:"nextRadius"`
	KeepBuffer int `json:"keepBuffer"`
}

// DefaultWindow is the window used when no settings are supplied.
var DefaultWindow = Window{PrevRadius: 2, NextRadius: 3, KeepBuffer: 5}

// normalize clamps negative fields to zero.
func (w Window) normalize() Window {
	return Window{
		PrevRadius: max(w.PrevRadius, 0),
		NextRadius: max(w.NextRadius, 0),
		KeepBuffer: max(w.KeepBuffer, 0),
	}
}

// Capacity is the largest number of entries the cache can hold after an
// eviction sweep.
func (w Window) Capacity() int {
	return w.PrevRadius + w.NextRadius + 2*w.KeepBuffer + 1
}

// RetainBefore and RetainAfter are the retention radii behind and ahead of
// the cursor.
func (w Window) RetainBefore() int { return w.PrevRadius + w.KeepBuffer }

func (w Window) RetainAfter() int { return w.NextRadius + w.KeepBuffer }

// retention returns the inclusive index range kept by eviction.
func (w Window) retention(cursor int) (lo, hi int) {
	return cursor - w.RetainBefore(), cursor + w.RetainAfter()
}

// targets lists the indices a pass wants loaded, cursor first, then ahead,
// then behind, clipped to [0, n).
func (w Window) targets(cursor, n int) []int {
	if n == 0 || cursor < 0 || cursor >= n {
		return nil
	}
	out := make([]int, 0, w.PrevRadius+w.NextRadius+1)
	out = append(out, cursor)
	for i := cursor + 1; i <= cursor+w.NextRadius && i < n; i++ {
		out = append(out, i)
	}
	for i := cursor - 1; i >= cursor-w.PrevRadius && i >= 0; i-- {
		out = append(out, i)
	}
	return out
}
