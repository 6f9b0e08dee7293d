package atlas

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/atlas/gpucore"
	"github.com/gogpu/atlas/pack"
)

// Default atlas settings.
const (
	// DefaultAtlasSize is the default per-layer dimension (2048x2048).
	DefaultAtlasSize = 2048

	// MinAtlasSize is the minimum per-layer dimension (256x256).
	MinAtlasSize = 256

	// DefaultTileSize is the edge length above which source textures
	// are split into tiles. Splitting large textures packs them much
	// tighter than reserving one huge rectangle.
	DefaultTileSize = 128
)

// atlasUsage is the texture usage every atlas texture needs: bound as a
// sampled texture, copy destination for tile writes, copy source so
// grown textures can receive the old contents.
const atlasUsage = gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// Config holds construction parameters for a LayeredAtlas.
type Config struct {
	// Width and Height are the initial per-layer dimensions.
	// Defaults to DefaultAtlasSize, clamped to the device limits.
	Width  int32
	Height int32

	// TileSize is the maximum tile edge length. Defaults to
	// DefaultTileSize.
	TileSize uint32

	// Format is the texel format of the atlas.
	Format Format

	// Label is an optional debug label for the GPU texture.
	Label string
}

// LayeredAtlas packs many small textures into one growable GPU texture
// array. Each array layer has its own 2D bin-packing allocator; when no
// layer can hold a tile the atlas grows, first by adding layers, then by
// doubling the layer size, until the device limits are reached.
//
// LayeredAtlas is NOT safe for concurrent use. All operations must run
// on the thread owning the device handles; GPU writes and copies are
// queued in call order and never awaited.
type LayeredAtlas[K comparable, D any] struct {
	dev    gpucore.Device
	format Format
	label  string

	// layers holds one sub-allocator per texture array layer; the slice
	// index is the layer index.
	layers []*pack.Allocator

	// keyed tracks cached allocations by cache key. The map entry does
	// not count as a holder.
	keyed map[K]*AllocatedTexture[D]

	// anon tracks keyless allocations so the sweep can reclaim them.
	anon []*AllocatedTexture[D]

	// size is the current per-layer dimension; all layers share it.
	size     pack.Size
	tileSize uint32

	texture gpucore.TextureID
	view    gpucore.TextureViewID

	maxSize   pack.Size
	maxLayers uint32

	needsRebinding bool
}

// New creates an atlas with one layer on the given device.
//
// The requested size is clamped to the device's maximum 2D texture
// dimension. New panics if cfg.Format is multi-planar: that can only
// come from a misconfigured call site, never from user input.
func New[K comparable, D any](dev gpucore.Device, cfg Config) (*LayeredAtlas[K, D], error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if cfg.Format.IsMultiPlanar() {
		panic(fmt.Sprintf("atlas: cannot create atlas for multi-planar format %v", cfg.Format))
	}
	if cfg.Format.BytesPerPixel() == 0 {
		panic(fmt.Sprintf("atlas: unsupported format %v", cfg.Format))
	}

	if cfg.Width < MinAtlasSize {
		cfg.Width = DefaultAtlasSize
	}
	if cfg.Height < MinAtlasSize {
		cfg.Height = DefaultAtlasSize
	}
	if cfg.TileSize == 0 {
		cfg.TileSize = DefaultTileSize
	}

	limits := dev.Limits()
	maxSize := pack.Size{
		Width:  int32(limits.MaxTextureDimension2D),
		Height: int32(limits.MaxTextureDimension2D),
	}
	size := pack.Size{Width: cfg.Width, Height: cfg.Height}.Min(maxSize)

	a := &LayeredAtlas[K, D]{
		dev:       dev,
		format:    cfg.Format,
		label:     cfg.Label,
		layers:    []*pack.Allocator{pack.New(size)},
		keyed:     make(map[K]*AllocatedTexture[D]),
		size:      size,
		tileSize:  cfg.TileSize,
		maxSize:   maxSize,
		maxLayers: limits.MaxTextureArrayLayers,
	}

	texture, view, err := a.createTexture(1, size)
	if err != nil {
		return nil, err
	}
	a.texture = texture
	a.view = view

	return a, nil
}

// createTexture creates a layerCount-deep texture array at the given
// per-layer size, plus its 2D-array view.
func (a *LayeredAtlas[K, D]) createTexture(layerCount uint32, size pack.Size) (gpucore.TextureID, gpucore.TextureViewID, error) {
	texture, err := a.dev.CreateTexture(gpucore.TextureDesc{
		Label:  a.label,
		Width:  uint32(size.Width),
		Height: uint32(size.Height),
		Layers: layerCount,
		Format: a.format.ToWGPUFormat(),
		Usage:  atlasUsage,
	})
	if err != nil {
		return gpucore.InvalidID, gpucore.InvalidID, fmt.Errorf("atlas: create texture: %w", err)
	}
	view, err := a.dev.CreateView(texture)
	if err != nil {
		a.dev.DestroyTexture(texture)
		return gpucore.InvalidID, gpucore.InvalidID, fmt.Errorf("atlas: create texture view: %w", err)
	}
	return texture, view, nil
}

// PixelSize returns the current per-layer dimensions in texels.
func (a *LayeredAtlas[K, D]) PixelSize() pack.Size { return a.size }

// TileSize returns the maximum tile edge length.
func (a *LayeredAtlas[K, D]) TileSize() uint32 { return a.tileSize }

// Format returns the atlas texel format.
func (a *LayeredAtlas[K, D]) Format() Format { return a.format }

// LayerCount returns the current number of texture array layers.
func (a *LayeredAtlas[K, D]) LayerCount() int { return len(a.layers) }

// LayerFreeArea returns the unpacked area of one layer, in texels.
func (a *LayeredAtlas[K, D]) LayerFreeArea(layer int) int64 {
	return a.layers[layer].FreeArea()
}

// Texture returns the atlas texture ID.
func (a *LayeredAtlas[K, D]) Texture() gpucore.TextureID { return a.texture }

// TextureView returns the current 2D-array view of the atlas texture.
// The view changes identity whenever the atlas grows; check
// NeedsRebinding before reusing bind groups built on it.
func (a *LayeredAtlas[K, D]) TextureView() gpucore.TextureViewID { return a.view }

// NeedsRebinding reports whether the underlying texture object was
// replaced since the last MarkBound. Consumers must rebuild any bind
// group referencing the old view, then call MarkBound.
func (a *LayeredAtlas[K, D]) NeedsRebinding() bool { return a.needsRebinding }

// MarkBound clears the rebinding flag.
func (a *LayeredAtlas[K, D]) MarkBound() { a.needsRebinding = false }

// IsAllocated returns the cached allocation for key, retaining it for
// the caller. The boolean is false if the key is not resident. No GPU
// work is performed.
func (a *LayeredAtlas[K, D]) IsAllocated(key K) (*AllocatedTexture[D], bool) {
	t, ok := a.keyed[key]
	if !ok {
		return nil, false
	}
	return t.Retain(), true
}

// Allocate packs a texture into the atlas and returns a shared handle.
//
// If key is non-nil and already resident, the existing handle is
// retained and returned with no GPU work. Otherwise
// the source is split into tiles, each tile packed independently (the
// atlas growing as needed), and the new allocation is tracked under key,
// or as keyless when key is nil.
//
// Any tile failure aborts the whole call: tiles already placed by this
// call are released back to their layers and nothing is tracked. The
// caller owns one reference on the returned handle and releases it when
// done; the texture is reclaimed by a later Deallocate sweep once all
// holders released.
func (a *LayeredAtlas[K, D]) Allocate(texture UnallocatedTexture, key *K, data D) (*AllocatedTexture[D], error) {
	if key != nil {
		if t, ok := a.IsAllocated(*key); ok {
			return t, nil
		}
	}
	if len(texture.Data) == 0 || texture.Width == 0 || texture.Height == 0 {
		return nil, ErrEmptyTexture
	}

	tiles := a.tileTexture(texture)

	allocated := make([]allocatedTile, 0, len(tiles))
	for _, tile := range tiles {
		at, err := a.allocateTile(tile)
		if err != nil {
			a.releasePartial(allocated)
			return nil, err
		}
		allocated = append(allocated, at)
	}

	return a.track(allocated, texture.Width, texture.Height, key, data), nil
}

// AllocateRaw packs contents as a single tile at grid position (0,0),
// skipping the tile split. Same cache-hit and failure contract as
// Allocate.
func (a *LayeredAtlas[K, D]) AllocateRaw(contents []byte, width, height uint32, key *K, data D) (*AllocatedTexture[D], error) {
	if key != nil {
		if t, ok := a.IsAllocated(*key); ok {
			return t, nil
		}
	}
	if len(contents) == 0 || width == 0 || height == 0 {
		return nil, ErrEmptyTexture
	}

	tile, err := a.allocateTile(unallocatedTile{
		data:   contents,
		width:  width,
		height: height,
	})
	if err != nil {
		return nil, err
	}

	return a.track([]allocatedTile{tile}, width, height, key, data), nil
}

// track bundles packed tiles into a tracked allocation and hands the
// caller its first reference.
func (a *LayeredAtlas[K, D]) track(tiles []allocatedTile, width, height uint32, key *K, data D) *AllocatedTexture[D] {
	t := &AllocatedTexture[D]{
		tiles:    tiles,
		tileSize: a.tileSize,
		width:    width,
		height:   height,
		Data:     data,
	}
	if key != nil {
		a.keyed[*key] = t
	} else {
		a.anon = append(a.anon, t)
	}
	return t.Retain()
}

// releasePartial returns tiles placed by a failed Allocate call to
// their layer allocators. The texels already written stay garbage until
// overwritten, which is harmless.
func (a *LayeredAtlas[K, D]) releasePartial(tiles []allocatedTile) {
	for _, tile := range tiles {
		a.layers[tile.location.Layer].Deallocate(tile.location.ID)
	}
}

// allocateTile packs one tile, growing the atlas as needed.
//
// Attempts in order: first-fit across existing layers; add a layer if
// below maxLayers; double the layer size if below maxSize; fail. Every
// growth step strictly increases capacity, so the recursion terminates
// after at most maxLayers + log2(maxSize/size) steps.
func (a *LayeredAtlas[K, D]) allocateTile(tile unallocatedTile) (allocatedTile, error) {
	req := pack.Size{Width: int32(tile.width), Height: int32(tile.height)}
	for layer, alloc := range a.layers {
		area, ok := alloc.Allocate(req)
		if !ok {
			continue
		}
		a.dev.WriteTexture(
			a.texture,
			gpucore.Origin{
				X:     uint32(area.Rect.Min.X),
				Y:     uint32(area.Rect.Min.Y),
				Layer: uint32(layer),
			},
			gpucore.Extent{Width: tile.width, Height: tile.height},
			tile.data,
			tile.width*a.format.BytesPerPixel(),
		)
		return allocatedTile{
			column: tile.column,
			row:    tile.row,
			location: Location{
				Layer: uint32(layer),
				ID:    area.ID,
				Rect:  area.Rect,
			},
		}, nil
	}

	if uint32(len(a.layers)) < a.maxLayers {
		if err := a.growLayers(); err != nil {
			return allocatedTile{}, err
		}
		return a.allocateTile(tile)
	}

	if a.size.Area() < a.maxSize.Area() {
		if err := a.growSize(); err != nil {
			return allocatedTile{}, err
		}
		return a.allocateTile(tile)
	}

	return allocatedTile{}, &AllocationError{Width: tile.width, Height: tile.height}
}

// growLayers replaces the atlas texture with one holding an extra
// layer, copying every existing layer across, and appends a fresh
// sub-allocator for the new empty layer.
func (a *LayeredAtlas[K, D]) growLayers() error {
	oldLayers := uint32(len(a.layers))
	if err := a.replaceTexture(oldLayers+1, a.size); err != nil {
		return err
	}
	a.layers = append(a.layers, pack.New(a.size))
	Logger().Debug("atlas: added layer",
		"layers", len(a.layers), "width", a.size.Width, "height", a.size.Height)
	return nil
}

// growSize replaces the atlas texture with one of doubled per-layer
// dimensions (clamped to the device maximum), copying the old region of
// every layer, and grows each layer's sub-allocator so the packer can
// reach the new space.
func (a *LayeredAtlas[K, D]) growSize() error {
	newSize := pack.Size{Width: a.size.Width * 2, Height: a.size.Height * 2}.Min(a.maxSize)
	if err := a.replaceTexture(uint32(len(a.layers)), newSize); err != nil {
		return err
	}
	a.size = newSize
	for _, layer := range a.layers {
		layer.Grow(newSize)
	}
	Logger().Debug("atlas: doubled layer size",
		"layers", len(a.layers), "width", newSize.Width, "height", newSize.Height)
	return nil
}

// replaceTexture creates a new texture array of the given shape, copies
// the current a.size region of every existing layer into it, destroys
// the old texture and view, and installs the new ones. Callers update
// the sub-allocators; the rebinding flag is always raised.
func (a *LayeredAtlas[K, D]) replaceTexture(layerCount uint32, size pack.Size) error {
	texture, view, err := a.createTexture(layerCount, size)
	if err != nil {
		return err
	}
	if err := a.dev.CopyTexture(a.texture, texture,
		uint32(len(a.layers)), uint32(a.size.Width), uint32(a.size.Height)); err != nil {
		a.dev.DestroyView(view)
		a.dev.DestroyTexture(texture)
		return fmt.Errorf("atlas: copy on grow: %w", err)
	}
	a.dev.DestroyView(a.view)
	a.dev.DestroyTexture(a.texture)
	a.texture = texture
	a.view = view
	a.needsRebinding = true
	return nil
}

// Deallocate reclaims every tracked allocation with no remaining
// external holders, releasing its tiles back to their layers. Tracked
// allocations with live holders are kept.
//
// The sweep must be invoked explicitly by the owner, typically once per
// frame; it is the only path that frees atlas space.
func (a *LayeredAtlas[K, D]) Deallocate() {
	var reclaimed int
	for key, t := range a.keyed {
		if t.refs.Load() > 0 {
			continue
		}
		a.releaseTiles(t)
		delete(a.keyed, key)
		reclaimed++
	}

	kept := a.anon[:0]
	for _, t := range a.anon {
		if t.refs.Load() > 0 {
			kept = append(kept, t)
			continue
		}
		a.releaseTiles(t)
		reclaimed++
	}
	// Drop trailing pointers so reclaimed allocations can be collected.
	for i := len(kept); i < len(a.anon); i++ {
		a.anon[i] = nil
	}
	a.anon = kept

	if reclaimed > 0 {
		Logger().Debug("atlas: deallocation sweep", "reclaimed", reclaimed,
			"kept", len(a.keyed)+len(a.anon))
	}
}

// releaseTiles frees every tile of t back to its layer's sub-allocator.
func (a *LayeredAtlas[K, D]) releaseTiles(t *AllocatedTexture[D]) {
	for _, tile := range t.tiles {
		layer := int(tile.location.Layer)
		if layer < len(a.layers) {
			a.layers[layer].Deallocate(tile.location.ID)
		}
	}
}

// Rearrange would defragment layers and shrink the texture back after
// heavy churn. Not implemented; allocations stay where they were packed.
func (a *LayeredAtlas[K, D]) Rearrange() {}

// Destroy releases the atlas's GPU texture and view and drops all
// tracking. Handles still held by callers become dangling; Destroy is
// for teardown only.
func (a *LayeredAtlas[K, D]) Destroy() {
	if a.texture != gpucore.InvalidID {
		a.dev.DestroyView(a.view)
		a.dev.DestroyTexture(a.texture)
		a.texture = gpucore.InvalidID
		a.view = gpucore.InvalidID
	}
	a.layers = nil
	a.keyed = nil
	a.anon = nil
}
