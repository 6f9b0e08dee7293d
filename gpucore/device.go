// Package gpucore defines the GPU device abstraction the atlas allocates
// through.
//
// The interface is the minimal texture surface the allocator needs:
// create/destroy array textures, write tile bytes at an origin, and copy
// layer contents between textures during growth. Backends live under
// backend/: backend/native drives gogpu/wgpu HAL hardware, and
// backend/software is a CPU implementation for tests and headless use.
//
// Resource lifecycle follows the usual ID-handle model: resources are
// created via Create* methods, must be destroyed explicitly, and IDs are
// invalid after destruction.
package gpucore

import "github.com/gogpu/gputypes"

// TextureID identifies a GPU texture owned by a Device.
type TextureID uint64

// TextureViewID identifies a view of a GPU texture.
type TextureViewID uint64

// InvalidID is the zero value for resource IDs; it never names a live
// resource.
const InvalidID = 0

// Origin is a texel offset into a texture array: (X, Y) within a layer,
// Layer selecting the array slice.
type Origin struct {
	X     uint32
	Y     uint32
	Layer uint32
}

// Extent is the size of a texture region in texels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Limits carries the device texture limits the atlas bounds its growth by.
type Limits struct {
	// MaxTextureDimension2D is the maximum width/height of a 2D texture.
	MaxTextureDimension2D uint32

	// MaxTextureArrayLayers is the maximum layer count of a texture array.
	MaxTextureArrayLayers uint32
}

// DefaultLimits returns the WebGPU base limits for the fields the atlas
// uses, matching gputypes.DefaultLimits.
func DefaultLimits() Limits {
	return Limits{
		MaxTextureDimension2D: 8192,
		MaxTextureArrayLayers: 256,
	}
}

// TextureDesc describes a 2D texture array to create.
type TextureDesc struct {
	// Label is an optional debug name.
	Label string

	// Width and Height are the per-layer dimensions in texels.
	Width  uint32
	Height uint32

	// Layers is the array layer count (1 for a plain 2D texture).
	Layers uint32

	// Format is the texel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used. The atlas requires
	// TextureBinding | CopySrc | CopyDst so grown textures can receive
	// the old contents and replaced textures can source them.
	Usage gputypes.TextureUsage
}

// Device is the GPU surface the atlas allocates through.
//
// Write and copy operations are queued in call order; the device
// guarantees queue ordering (a write issued before a copy lands before
// it), and no operation waits for GPU completion.
//
// Implementations must be safe for concurrent use; the atlas itself is
// single-threaded but backends are commonly shared.
type Device interface {
	// Limits reports the device texture limits.
	Limits() Limits

	// CreateTexture creates a texture array.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// DestroyTexture releases a texture. Destroying an unknown ID is
	// a no-op.
	DestroyTexture(id TextureID)

	// CreateView creates a 2D-array view of the whole texture. The view
	// identity changes with the texture; consumers binding it must
	// recreate bind groups after the atlas replaces its texture.
	CreateView(id TextureID) (TextureViewID, error)

	// DestroyView releases a texture view.
	DestroyView(id TextureViewID)

	// WriteTexture copies data into the region at origin of the given
	// extent. data holds extent.Height rows of bytesPerRow bytes, row
	// after row with no padding.
	WriteTexture(id TextureID, origin Origin, extent Extent, data []byte, bytesPerRow uint32)

	// CopyTexture copies the width x height region of each of the first
	// layers array layers from src to dst, layer indices preserved.
	CopyTexture(src, dst TextureID, layers, width, height uint32) error
}
