// Package software implements gpucore.Device with plain in-memory
// textures. It backs tests and headless tools that exercise atlas
// packing without a GPU.
package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/atlas/gpucore"
)

type texture struct {
	desc gpucore.TextureDesc
	bpp  uint32
	// layers holds one tightly packed pixel buffer per array layer.
	layers [][]byte
}

// Device is an in-memory gpucore.Device. Writes and copies happen
// synchronously. Device is safe for concurrent use.
type Device struct {
	mu       sync.RWMutex
	limits   gpucore.Limits
	textures map[gpucore.TextureID]*texture
	views    map[gpucore.TextureViewID]gpucore.TextureID
	nextID   uint64
}

// New returns a device with the default limits.
func New() *Device {
	return NewWithLimits(gpucore.DefaultLimits())
}

// NewWithLimits returns a device with custom limits. Tests use small
// limits to force atlas growth and exhaustion cheaply.
func NewWithLimits(limits gpucore.Limits) *Device {
	return &Device{
		limits:   limits,
		textures: make(map[gpucore.TextureID]*texture),
		views:    make(map[gpucore.TextureViewID]gpucore.TextureID),
	}
}

// Limits implements gpucore.Device.
func (d *Device) Limits() gpucore.Limits { return d.limits }

func bytesPerPixel(format gputypes.TextureFormat) (uint32, error) {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1, nil
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return 4, nil
	default:
		return 0, fmt.Errorf("software: unsupported texture format %v", format)
	}
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.Layers == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: zero-sized texture %q", desc.Label)
	}
	if desc.Width > d.limits.MaxTextureDimension2D || desc.Height > d.limits.MaxTextureDimension2D {
		return gpucore.InvalidID, fmt.Errorf("software: texture %dx%d exceeds limit %d",
			desc.Width, desc.Height, d.limits.MaxTextureDimension2D)
	}
	if desc.Layers > d.limits.MaxTextureArrayLayers {
		return gpucore.InvalidID, fmt.Errorf("software: %d layers exceeds limit %d",
			desc.Layers, d.limits.MaxTextureArrayLayers)
	}
	bpp, err := bytesPerPixel(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	layers := make([][]byte, desc.Layers)
	for i := range layers {
		layers[i] = make([]byte, int(desc.Width)*int(desc.Height)*int(bpp))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := gpucore.TextureID(d.nextID)
	d.textures[id] = &texture{desc: desc, bpp: bpp, layers: layers}
	return id, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// CreateView implements gpucore.Device.
func (d *Device) CreateView(id gpucore.TextureID) (gpucore.TextureViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[id]; !ok {
		return gpucore.InvalidID, fmt.Errorf("software: view of unknown texture %d", id)
	}
	d.nextID++
	view := gpucore.TextureViewID(d.nextID)
	d.views[view] = id
	return view, nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(id gpucore.TextureViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, id)
}

// WriteTexture implements gpucore.Device. Rows are copied from data at
// bytesPerRow pitch into the target layer. Out-of-bounds writes and
// unknown textures are ignored, matching a lost GPU device.
func (d *Device) WriteTexture(id gpucore.TextureID, origin gpucore.Origin, extent gpucore.Extent, data []byte, bytesPerRow uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok || origin.Layer >= uint32(len(t.layers)) {
		return
	}
	if origin.X+extent.Width > t.desc.Width || origin.Y+extent.Height > t.desc.Height {
		return
	}

	dst := t.layers[origin.Layer]
	rowBytes := int(extent.Width) * int(t.bpp)
	dstPitch := int(t.desc.Width) * int(t.bpp)
	for row := 0; row < int(extent.Height); row++ {
		src := data[row*int(bytesPerRow) : row*int(bytesPerRow)+rowBytes]
		off := (int(origin.Y)+row)*dstPitch + int(origin.X)*int(t.bpp)
		copy(dst[off:off+rowBytes], src)
	}
}

// CopyTexture implements gpucore.Device. The top-left width x height
// region of each of the first layerCount layers is copied from src to
// dst; dst may be larger in any dimension.
func (d *Device) CopyTexture(src, dst gpucore.TextureID, layerCount, width, height uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.textures[src]
	if !ok {
		return fmt.Errorf("software: copy from unknown texture %d", src)
	}
	t, ok := d.textures[dst]
	if !ok {
		return fmt.Errorf("software: copy to unknown texture %d", dst)
	}
	if s.bpp != t.bpp {
		return fmt.Errorf("software: copy between incompatible formats %v and %v",
			s.desc.Format, t.desc.Format)
	}
	if layerCount > uint32(len(s.layers)) || layerCount > uint32(len(t.layers)) {
		return fmt.Errorf("software: copy of %d layers exceeds texture depth", layerCount)
	}
	if width > s.desc.Width || height > s.desc.Height || width > t.desc.Width || height > t.desc.Height {
		return fmt.Errorf("software: copy region %dx%d exceeds texture bounds", width, height)
	}

	rowBytes := int(width) * int(s.bpp)
	srcPitch := int(s.desc.Width) * int(s.bpp)
	dstPitch := int(t.desc.Width) * int(t.bpp)
	for layer := uint32(0); layer < layerCount; layer++ {
		for row := 0; row < int(height); row++ {
			copy(t.layers[layer][row*dstPitch:row*dstPitch+rowBytes],
				s.layers[layer][row*srcPitch:row*srcPitch+rowBytes])
		}
	}
	return nil
}

// ReadRegion returns a copy of a rectangular region of one layer, rows
// tightly packed. Test helper.
func (d *Device) ReadRegion(id gpucore.TextureID, layer, x, y, width, height uint32) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("software: read from unknown texture %d", id)
	}
	if layer >= uint32(len(t.layers)) || x+width > t.desc.Width || y+height > t.desc.Height {
		return nil, fmt.Errorf("software: read region out of bounds")
	}
	rowBytes := int(width) * int(t.bpp)
	pitch := int(t.desc.Width) * int(t.bpp)
	out := make([]byte, rowBytes*int(height))
	for row := 0; row < int(height); row++ {
		off := (int(y)+row)*pitch + int(x)*int(t.bpp)
		copy(out[row*rowBytes:(row+1)*rowBytes], t.layers[layer][off:off+rowBytes])
	}
	return out, nil
}

// TextureCount returns the number of live textures. Test helper for
// leak checks across atlas growth.
func (d *Device) TextureCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.textures)
}

var _ gpucore.Device = (*Device)(nil)
