/*
Package virtualize computes the visible window of a large ordered
collection for constrained-height list rendering.

PURPOSE:
  Rendering thousands of rows is wasteful when only a handful intersect
  the viewport. Given item height, container height, overscan margin, and
  the current scroll offset, Compute returns the index window to render
  plus the offsets needed to position the slice inside a full-height
  scroll container. Render cost becomes independent of collection size.

READ MODEL ONLY:
  Pure functions, no I/O, items are never mutated.

WINDOW MATH:
  visibleCount = ceil(containerHeight / itemHeight)
  start        = max(0, floor(scrollTop / itemHeight) - overscan)
  end          = min(len-1, start + visibleCount + 2*overscan)
  totalHeight  = len * itemHeight
  offsetY      = start * itemHeight
*/
package virtualize

// Params describes the viewport geometry and scroll position.
type Params struct {
	ItemHeight      int
	ContainerHeight int
	Overscan        int
	ScrollTop       int
}

// Window is the computed visible index range. End is inclusive; for an
// empty collection End is -1 and the window is empty.
type Window struct {
	Start        int
	End          int
	VisibleCount int
	TotalHeight  int
	OffsetY      int
}

// Compute derives the window for a collection of n items.
func Compute(n int, p Params) Window {
	if p.ItemHeight <= 0 {
		return Window{End: -1}
	}

	visible := (p.ContainerHeight + p.ItemHeight - 1) / p.ItemHeight

	start := p.ScrollTop/p.ItemHeight - p.Overscan
	if start < 0 {
		start = 0
	}

	end := start + visible + 2*p.Overscan
	if end > n-1 {
		end = n - 1
	}

	return Window{
		Start:        start,
		End:          end,
		VisibleCount: visible,
		TotalHeight:  n * p.ItemHeight,
		OffsetY:      start * p.ItemHeight,
	}
}

// Indexed tags a rendered item with its original index, so row identity
// survives windowing.
type Indexed[T any] struct {
	Item  T
	Index int
}

// Slice returns the window's items tagged with their original indices.
func Slice[T any](items []T, w Window) []Indexed[T] {
	if w.Start > w.End || w.Start >= len(items) {
		return nil
	}
	end := w.End
	if end > len(items)-1 {
		end = len(items) - 1
	}

	out := make([]Indexed[T], 0, end-w.Start+1)
	for i := w.Start; i <= end; i++ {
		out = append(out, Indexed[T]{Item: items[i], Index: i})
	}
	return out
}

// IndexAt returns the item index at a given scroll offset.
func IndexAt(scrollTop, itemHeight int) int {
	if itemHeight <= 0 {
		return 0
	}
	return scrollTop / itemHeight
}

// OffsetOf returns the scroll offset that brings an index to the top.
func OffsetOf(index, itemHeight int) int {
	return index * itemHeight
}
