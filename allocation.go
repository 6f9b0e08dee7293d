package atlas

import (
	"sync/atomic"

	"github.com/gogpu/atlas/pack"
)

// Location records where one tile landed: which array layer, the
// sub-allocator id needed to free the region later, and the packed
// rectangle in that layer's texel space.
type Location struct {
	Layer uint32
	ID    pack.AllocID
	Rect  pack.Rect
}

// allocatedTile is one packed chunk of a source texture.
type allocatedTile struct {
	// column and row are the tile's grid position within the original
	// image, matching the row-major order tiling produces.
	column uint32
	row    uint32

	location Location
}

// AllocatedTexture is a texture resident in the atlas, shared between
// every caller that holds it and the atlas's own tracking map.
//
// Holders share the allocation through an explicit reference count:
// every handle returned by Allocate, AllocateRaw, or IsAllocated counts
// as one external holder, duplicating a handle requires Retain, and a
// holder that is done calls Release. The atlas's tracking entry does
// not count; once the external count reaches zero the next Deallocate
// sweep reclaims the tiles.
type AllocatedTexture[D any] struct {
	tiles    []allocatedTile
	tileSize uint32

	// width and height are the original untiled dimensions.
	width  uint32
	height uint32

	// Data is the caller-supplied payload carried alongside the
	// allocation, opaque to the atlas (glyph metrics, typically).
	Data D

	refs atomic.Int32
}

// Width returns the original untiled width in texels.
func (t *AllocatedTexture[D]) Width() uint32 { return t.width }

// Height returns the original untiled height in texels.
func (t *AllocatedTexture[D]) Height() uint32 { return t.height }

// TileCount returns the number of atlas tiles backing the texture.
func (t *AllocatedTexture[D]) TileCount() int { return len(t.tiles) }

// Tile returns the location of tile i, in the row-major order the
// texture was split in.
func (t *AllocatedTexture[D]) Tile(i int) Location { return t.tiles[i].location }

// Retain registers an additional holder and returns t for chaining.
func (t *AllocatedTexture[D]) Retain() *AllocatedTexture[D] {
	t.refs.Add(1)
	return t
}

// Release drops one holder. After the last Release the allocation stays
// resident until the owning atlas's next Deallocate sweep.
func (t *AllocatedTexture[D]) Release() {
	if t.refs.Add(-1) < 0 {
		Logger().Warn("atlas: texture released more times than retained",
			"width", t.width, "height", t.height)
	}
}

// Holders returns the current external holder count.
func (t *AllocatedTexture[D]) Holders() int {
	n := t.refs.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
