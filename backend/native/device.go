//go:build !nogpu

// Package native implements gpucore.Device on top of gogpu/wgpu HAL
// devices, either by opening an adapter itself or by wrapping handles
// shared with a larger renderer.
package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/atlas/gpucore"
)

type textureEntry struct {
	tex    hal.Texture
	desc   gpucore.TextureDesc
	bpp    uint32
	format gputypes.TextureFormat
}

// Device implements gpucore.Device over a hal.Device and hal.Queue.
// Texture and view handles are mapped to opaque IDs so callers never
// touch HAL types. Device is safe for concurrent use.
type Device struct {
	mu       sync.RWMutex
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	limits   gpucore.Limits
	owned    bool

	textures map[gpucore.TextureID]*textureEntry
	views    map[gpucore.TextureViewID]hal.TextureView
	nextID   uint64
}

// Open enumerates GPU adapters through the Vulkan backend, preferring a
// discrete or integrated GPU, and opens a device on the best match.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("native: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	d := newDevice(openDev.Device, openDev.Queue, gpucore.DefaultLimits())
	d.instance = instance
	d.owned = true
	return d, nil
}

// FromHAL wraps an externally owned device and queue, for embedding the
// atlas in a renderer that already manages its GPU. Close will not
// destroy the shared handles.
func FromHAL(device hal.Device, queue hal.Queue, limits gpucore.Limits) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("native: nil HAL device or queue")
	}
	return newDevice(device, queue, limits), nil
}

func newDevice(device hal.Device, queue hal.Queue, limits gpucore.Limits) *Device {
	return &Device{
		device:   device,
		queue:    queue,
		limits:   limits,
		textures: make(map[gpucore.TextureID]*textureEntry),
		views:    make(map[gpucore.TextureViewID]hal.TextureView),
	}
}

// HalDevice returns the underlying hal.Device for sharing with other
// GPU subsystems.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the underlying hal.Queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// Close destroys all textures and views created through this device,
// then the device itself when owned.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, view := range d.views {
		d.device.DestroyTextureView(view)
		delete(d.views, id)
	}
	for id, entry := range d.textures {
		d.device.DestroyTexture(entry.tex)
		delete(d.textures, id)
	}
	if d.owned {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// Limits implements gpucore.Device.
func (d *Device) Limits() gpucore.Limits { return d.limits }

func formatBytesPerPixel(format gputypes.TextureFormat) (uint32, error) {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1, nil
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return 4, nil
	default:
		return 0, fmt.Errorf("native: unsupported texture format %v", format)
	}
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc gpucore.TextureDesc) (gpucore.TextureID, error) {
	bpp, err := formatBytesPerPixel(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := gpucore.TextureID(d.nextID)
	d.textures[id] = &textureEntry{tex: tex, desc: desc, bpp: bpp, format: desc.Format}
	return id, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	entry, ok := d.textures[id]
	if ok {
		delete(d.textures, id)
	}
	d.mu.Unlock()
	if ok {
		d.device.DestroyTexture(entry.tex)
	}
}

// CreateView implements gpucore.Device. The view always covers every
// layer as a 2D array so shaders can index layers uniformly.
func (d *Device) CreateView(id gpucore.TextureID) (gpucore.TextureViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.textures[id]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("native: view of unknown texture %d", id)
	}
	view, err := d.device.CreateTextureView(entry.tex, &hal.TextureViewDescriptor{
		Label:           entry.desc.Label + " view",
		Format:          entry.format,
		Dimension:       gputypes.TextureViewDimension2DArray,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: entry.desc.Layers,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture view: %w", err)
	}
	d.nextID++
	viewID := gpucore.TextureViewID(d.nextID)
	d.views[viewID] = view
	return viewID, nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(id gpucore.TextureViewID) {
	d.mu.Lock()
	view, ok := d.views[id]
	if ok {
		delete(d.views, id)
	}
	d.mu.Unlock()
	if ok {
		d.device.DestroyTextureView(view)
	}
}

// HalView resolves a view ID to the underlying hal.TextureView, for
// building bind groups.
func (d *Device) HalView(id gpucore.TextureViewID) (hal.TextureView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	view, ok := d.views[id]
	return view, ok
}

// WriteTexture implements gpucore.Device. The write is queued and not
// awaited; the queue orders it before any later submission that samples
// the texture.
func (d *Device) WriteTexture(id gpucore.TextureID, origin gpucore.Origin, extent gpucore.Extent, data []byte, bytesPerRow uint32) {
	d.mu.RLock()
	entry, ok := d.textures[id]
	d.mu.RUnlock()
	if !ok || len(data) == 0 {
		return
	}

	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  entry.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: origin.X, Y: origin.Y, Z: origin.Layer},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: extent.Height,
		},
		&hal.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
	)
}

// CopyTexture implements gpucore.Device. The copy is recorded into a
// one-shot command buffer and submitted without a fence; queue ordering
// keeps it ahead of later work on the destination.
func (d *Device) CopyTexture(src, dst gpucore.TextureID, layerCount, width, height uint32) error {
	d.mu.RLock()
	srcEntry, srcOK := d.textures[src]
	dstEntry, dstOK := d.textures[dst]
	d.mu.RUnlock()
	if !srcOK {
		return fmt.Errorf("native: copy from unknown texture %d", src)
	}
	if !dstOK {
		return fmt.Errorf("native: copy to unknown texture %d", dst)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "atlas_copy_encoder"})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("atlas_copy"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}

	regions := make([]hal.TextureCopy, 0, layerCount)
	for layer := uint32(0); layer < layerCount; layer++ {
		regions = append(regions, hal.TextureCopy{
			SrcBase: hal.ImageCopyTexture{
				Texture:  srcEntry.tex,
				MipLevel: 0,
				Origin:   hal.Origin3D{Z: layer},
				Aspect:   gputypes.TextureAspectAll,
			},
			DstBase: hal.ImageCopyTexture{
				Texture:  dstEntry.tex,
				MipLevel: 0,
				Origin:   hal.Origin3D{Z: layer},
				Aspect:   gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		})
	}
	encoder.CopyTextureToTexture(srcEntry.tex, dstEntry.tex, regions)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	// The submission index is only useful for fence waits; the copy is
	// queue-ordered ahead of later work so nothing waits on it.
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("native: submit copy: %w", err)
	}
	return nil
}

var _ gpucore.Device = (*Device)(nil)
