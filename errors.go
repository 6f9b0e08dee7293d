package atlas

import (
	"errors"
	"fmt"
)

// Atlas errors.
var (
	// ErrAtlasExhausted is returned when a tile cannot be packed even
	// after layer count and layer size have both reached the device
	// limits. This is the only terminal runtime failure of the
	// allocator; callers typically skip the draw or run Deallocate and
	// retry.
	ErrAtlasExhausted = errors.New("atlas: texture atlas is exhausted")

	// ErrNilDevice is returned when constructing an atlas without a
	// device.
	ErrNilDevice = errors.New("atlas: device is nil")

	// ErrEmptyTexture is returned when allocating a zero-sized or
	// nil-data texture.
	ErrEmptyTexture = errors.New("atlas: texture has no data")
)

// AllocationError reports a tile that could not be packed after all
// growth paths were exhausted. It wraps ErrAtlasExhausted so callers
// can match with errors.Is.
type AllocationError struct {
	// Width and Height are the dimensions of the offending tile.
	Width  uint32
	Height uint32
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("atlas: failed to allocate tile of %dx%d: %v", e.Width, e.Height, ErrAtlasExhausted)
}

// Unwrap returns ErrAtlasExhausted.
func (e *AllocationError) Unwrap() error {
	return ErrAtlasExhausted
}
