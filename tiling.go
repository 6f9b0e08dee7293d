package atlas

// UnallocatedTexture is a source image waiting to be packed: raw texel
// bytes in the atlas format, tightly packed row-major.
type UnallocatedTexture struct {
	Data   []byte
	Width  uint32
	Height uint32
}

// NewUnallocatedTexture bundles raw texel bytes with their dimensions.
func NewUnallocatedTexture(data []byte, width, height uint32) UnallocatedTexture {
	return UnallocatedTexture{Data: data, Width: width, Height: height}
}

// unallocatedTile is one chunk of a source texture before packing.
type unallocatedTile struct {
	data []byte

	column uint32
	row    uint32

	width  uint32
	height uint32
}

// tileTexture splits a source image into a row-major grid of tiles of
// at most tileSize x tileSize. Right and bottom edge tiles are clipped
// to the remaining width/height, never padded. Each tile gets a freshly
// owned copy of its sub-rectangle of the source bytes.
//
// Output order is row 0 all columns, then row 1, and so on; mesh
// generation relies on this order matching the stored column/row.
func (a *LayeredAtlas[K, D]) tileTexture(texture UnallocatedTexture) []unallocatedTile {
	rows := (texture.Height + a.tileSize - 1) / a.tileSize
	cols := (texture.Width + a.tileSize - 1) / a.tileSize
	tiles := make([]unallocatedTile, 0, rows*cols)

	stride := a.format.BytesPerPixel()

	for row := uint32(0); row < rows; row++ {
		for column := uint32(0); column < cols; column++ {
			x := column * a.tileSize
			y := row * a.tileSize

			tileWidth := min(texture.Width-x, a.tileSize)
			tileHeight := min(texture.Height-y, a.tileSize)

			data := make([]byte, 0, tileWidth*tileHeight*stride)
			for ty := uint32(0); ty < tileHeight; ty++ {
				srcStart := ((y+ty)*texture.Width + x) * stride
				srcEnd := srcStart + tileWidth*stride
				data = append(data, texture.Data[srcStart:srcEnd]...)
			}

			tiles = append(tiles, unallocatedTile{
				data:   data,
				column: column,
				row:    row,
				width:  tileWidth,
				height: tileHeight,
			})
		}
	}

	return tiles
}
