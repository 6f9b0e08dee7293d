package atlas

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format selects the texel format of an atlas.
//
// The atlas only supports simple packed formats: one texel, one
// contiguous run of bytes. Multi-planar video formats cannot be packed
// into a shared atlas and are rejected at construction.
type Format uint8

const (
	// FormatMask is single-channel 8-bit coverage, used for glyph masks.
	FormatMask Format = iota

	// FormatRGBA8 is 8-bit-per-channel sRGB color, used for images and
	// color glyphs.
	FormatRGBA8

	// FormatBGRA8 is the BGRA channel order variant, matching surface
	// formats on most platforms.
	FormatBGRA8

	// FormatNV12 is a multi-planar video format. It exists so callers
	// hit the construction precondition instead of silent corruption;
	// the atlas never accepts it.
	FormatNV12
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatMask:
		return "Mask"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatNV12:
		return "NV12"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// BytesPerPixel returns the byte stride of one texel.
// Multi-planar formats have no single stride and return 0.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatMask:
		return 1
	case FormatRGBA8, FormatBGRA8:
		return 4
	default:
		return 0
	}
}

// IsMultiPlanar reports whether the format stores channels in separate
// planes.
func (f Format) IsMultiPlanar() bool {
	return f == FormatNV12
}

// ToWGPUFormat converts to the wgpu texture format.
func (f Format) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatMask:
		return gputypes.TextureFormatR8Unorm
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatRGBA8UnormSrgb
	}
}
