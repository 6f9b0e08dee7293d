package atlas

import "math"

// GlyphKey identifies a rasterized glyph in a glyph atlas. Font size is
// stored as the float32 bit pattern so the key stays comparable.
type GlyphKey struct {
	FontID   uint64
	GlyphID  uint16
	SizeBits uint32
}

// NewGlyphKey builds a key for a glyph rendered at the given pixel size.
func NewGlyphKey(fontID uint64, glyphID uint16, size float32) GlyphKey {
	return GlyphKey{
		FontID:   fontID,
		GlyphID:  glyphID,
		SizeBits: math.Float32bits(size),
	}
}

// Size returns the pixel size the key was built with.
func (k GlyphKey) Size() float32 { return math.Float32frombits(k.SizeBits) }

// ImageKey identifies a decoded image, typically by path or URL.
type ImageKey string

// GlyphMetrics is per-glyph user data for text layout: where to place
// the glyph quad relative to the pen position. Suitable as the D
// parameter of a glyph atlas.
type GlyphMetrics struct {
	// Left and Top offset the quad's top-left corner from the pen, in
	// pixels. Top is positive above the baseline.
	Left float32
	Top  float32

	// Advance is the horizontal pen advance in pixels.
	Advance float32
}
