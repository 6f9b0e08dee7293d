// Package pack implements 2D rectangle bin packing for texture atlases.
//
// The allocator hands out rectangular regions within a fixed-size area
// using a guillotine scheme: each allocation cuts a free rectangle into
// the allocated region plus up to two smaller free rectangles. Freed
// regions return to the free list and are merged back with neighbors
// where possible.
//
// Allocator is NOT safe for concurrent use; the owning atlas serializes
// access.
package pack

import "fmt"

// Size is a width/height pair in pixels.
type Size struct {
	Width  int32
	Height int32
}

// Area returns Width*Height as int64 to avoid overflow for large atlases.
func (s Size) Area() int64 {
	return int64(s.Width) * int64(s.Height)
}

// Min returns the component-wise minimum of s and o.
func (s Size) Min(o Size) Size {
	if o.Width < s.Width {
		s.Width = o.Width
	}
	if o.Height < s.Height {
		s.Height = o.Height
	}
	return s
}

// Point is a 2D integer coordinate.
type Point struct {
	X int32
	Y int32
}

// Rect is an axis-aligned rectangle with inclusive Min and exclusive Max.
type Rect struct {
	Min Point
	Max Point
}

// Width returns the rectangle width.
func (r Rect) Width() int32 { return r.Max.X - r.Min.X }

// Height returns the rectangle height.
func (r Rect) Height() int32 { return r.Max.Y - r.Min.Y }

// Size returns the rectangle dimensions.
func (r Rect) Size() Size { return Size{Width: r.Width(), Height: r.Height()} }

// Area returns the rectangle area.
func (r Rect) Area() int64 { return r.Size().Area() }

// Empty returns true if the rectangle has no area.
func (r Rect) Empty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

// String returns a string representation of the rectangle.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(%d,%d %dx%d)", r.Min.X, r.Min.Y, r.Width(), r.Height())
}

// AllocID identifies a live allocation within an Allocator.
// IDs are never reused while the allocation is live; they become invalid
// after Deallocate.
type AllocID uint32

// Allocation is the result of a successful Allocate call.
type Allocation struct {
	// ID is the handle used to free the region later.
	ID AllocID

	// Rect is the packed region within the allocator's area.
	Rect Rect
}

// Allocator tracks free space within a 2D area and hands out
// rectangular regions.
type Allocator struct {
	size Size

	// free holds the current free rectangles. Order is not significant;
	// Allocate scans for the best-area fit.
	free []Rect

	// allocs maps live allocation IDs to their rectangles.
	allocs map[AllocID]Rect

	nextID AllocID

	usedArea   int64
	allocCount int
}

// New creates an allocator covering a size.Width x size.Height area.
func New(size Size) *Allocator {
	a := &Allocator{
		allocs: make(map[AllocID]Rect),
		nextID: 1,
	}
	if size.Width > 0 && size.Height > 0 {
		a.size = size
		a.free = []Rect{{Max: Point{X: size.Width, Y: size.Height}}}
	}
	return a
}

// Size returns the dimensions of the managed area.
func (a *Allocator) Size() Size { return a.size }

// AllocCount returns the number of live allocations.
func (a *Allocator) AllocCount() int { return a.allocCount }

// UsedArea returns the total area of live allocations.
func (a *Allocator) UsedArea() int64 { return a.usedArea }

// FreeArea returns the total area of the free list.
func (a *Allocator) FreeArea() int64 {
	var total int64
	for _, r := range a.free {
		total += r.Area()
	}
	return total
}

// Utilization returns the fraction of area used (0.0 to 1.0).
func (a *Allocator) Utilization() float64 {
	total := a.size.Area()
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}

// Allocate finds space for a req.Width x req.Height region.
// The boolean is false if no free rectangle can hold the request.
func (a *Allocator) Allocate(req Size) (Allocation, bool) {
	if req.Width <= 0 || req.Height <= 0 {
		return Allocation{}, false
	}

	// Best-area fit: the smallest free rectangle that holds the request
	// wastes the least space on the split.
	best := -1
	var bestArea int64
	for i, r := range a.free {
		if r.Width() < req.Width || r.Height() < req.Height {
			continue
		}
		area := r.Area()
		if best < 0 || area < bestArea {
			best = i
			bestArea = area
		}
	}
	if best < 0 {
		return Allocation{}, false
	}

	host := a.free[best]
	// Remove the host rectangle (swap with last).
	a.free[best] = a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	alloc := Rect{
		Min: host.Min,
		Max: Point{X: host.Min.X + req.Width, Y: host.Min.Y + req.Height},
	}

	a.split(host, alloc)

	id := a.nextID
	a.nextID++
	a.allocs[id] = alloc
	a.allocCount++
	a.usedArea += alloc.Area()

	return Allocation{ID: id, Rect: alloc}, true
}

// split cuts the leftover of host around alloc into at most two free
// rectangles. The cut runs along the longer leftover axis so the larger
// remainder stays in one piece.
func (a *Allocator) split(host, alloc Rect) {
	leftoverW := host.Width() - alloc.Width()
	leftoverH := host.Height() - alloc.Height()

	var right, bottom Rect
	if leftoverW >= leftoverH {
		// Vertical cut: right piece takes the full host height.
		right = Rect{
			Min: Point{X: alloc.Max.X, Y: host.Min.Y},
			Max: host.Max,
		}
		bottom = Rect{
			Min: Point{X: host.Min.X, Y: alloc.Max.Y},
			Max: Point{X: alloc.Max.X, Y: host.Max.Y},
		}
	} else {
		// Horizontal cut: bottom piece takes the full host width.
		right = Rect{
			Min: Point{X: alloc.Max.X, Y: host.Min.Y},
			Max: Point{X: host.Max.X, Y: alloc.Max.Y},
		}
		bottom = Rect{
			Min: Point{X: host.Min.X, Y: alloc.Max.Y},
			Max: host.Max,
		}
	}

	if !right.Empty() {
		a.free = append(a.free, right)
	}
	if !bottom.Empty() {
		a.free = append(a.free, bottom)
	}
}

// Deallocate returns a region to the free list. Unknown IDs are ignored
// so a double free is harmless.
func (a *Allocator) Deallocate(id AllocID) {
	rect, ok := a.allocs[id]
	if !ok {
		return
	}
	delete(a.allocs, id)
	a.allocCount--
	a.usedArea -= rect.Area()

	a.free = append(a.free, rect)
	a.mergeFree()
}

// Grow extends the managed area to newSize, keeping every live
// allocation in place. Shrinking is not supported; dimensions smaller
// than the current size are ignored per-axis.
func (a *Allocator) Grow(newSize Size) {
	old := a.size
	if newSize.Width < old.Width {
		newSize.Width = old.Width
	}
	if newSize.Height < old.Height {
		newSize.Height = old.Height
	}
	if newSize == old {
		return
	}
	a.size = newSize

	// New space arrives as a right strip spanning the full new height
	// and a bottom strip under the old width.
	if newSize.Width > old.Width {
		a.free = append(a.free, Rect{
			Min: Point{X: old.Width, Y: 0},
			Max: Point{X: newSize.Width, Y: newSize.Height},
		})
	}
	if newSize.Height > old.Height {
		a.free = append(a.free, Rect{
			Min: Point{X: 0, Y: old.Height},
			Max: Point{X: old.Width, Y: newSize.Height},
		})
	}
	a.mergeFree()
}

// Clear drops every allocation and restores the full area as free.
func (a *Allocator) Clear() {
	a.free = a.free[:0]
	if a.size.Width > 0 && a.size.Height > 0 {
		a.free = append(a.free, Rect{Max: Point{X: a.size.Width, Y: a.size.Height}})
	}
	a.allocs = make(map[AllocID]Rect)
	a.allocCount = 0
	a.usedArea = 0
}

// mergeFree coalesces free rectangles that share a full edge. Repeats
// until a pass makes no progress; the free list stays small in practice
// so the quadratic scan is fine.
func (a *Allocator) mergeFree() {
	for {
		merged := false
		for i := 0; i < len(a.free) && !merged; i++ {
			for j := i + 1; j < len(a.free); j++ {
				if m, ok := mergeRects(a.free[i], a.free[j]); ok {
					a.free[i] = m
					a.free[j] = a.free[len(a.free)-1]
					a.free = a.free[:len(a.free)-1]
					merged = true
					break
				}
			}
		}
		if !merged {
			return
		}
	}
}

// mergeRects combines two rectangles into one if they share a complete
// vertical or horizontal edge.
func mergeRects(x, y Rect) (Rect, bool) {
	// Same row span, horizontally adjacent.
	if x.Min.Y == y.Min.Y && x.Max.Y == y.Max.Y {
		if x.Max.X == y.Min.X {
			return Rect{Min: x.Min, Max: y.Max}, true
		}
		if y.Max.X == x.Min.X {
			return Rect{Min: y.Min, Max: x.Max}, true
		}
	}
	// Same column span, vertically adjacent.
	if x.Min.X == y.Min.X && x.Max.X == y.Max.X {
		if x.Max.Y == y.Min.Y {
			return Rect{Min: x.Min, Max: y.Max}, true
		}
		if y.Max.Y == x.Min.Y {
			return Rect{Min: y.Min, Max: x.Max}, true
		}
	}
	return Rect{}, false
}
