package atlas

import (
	"bytes"
	"testing"

	"github.com/gogpu/atlas/backend/software"
)

func tilingAtlas(t *testing.T, tileSize uint32) *LayeredAtlas[string, struct{}] {
	t.Helper()
	a, err := New[string, struct{}](software.New(), Config{Format: FormatMask, TileSize: tileSize})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// gradientTexture builds a texture whose texel at (x, y) is x+y*width,
// truncated to a byte, so tile contents are position dependent.
func gradientTexture(width, height uint32) UnallocatedTexture {
	data := make([]byte, width*height)
	for i := range data {
		data[i] = byte(i)
	}
	return NewUnallocatedTexture(data, width, height)
}

func TestTileGrid(t *testing.T) {
	a := tilingAtlas(t, 4)

	tests := []struct {
		width, height uint32
		tiles         int
	}{
		{1, 1, 1},
		{4, 4, 1},
		{5, 4, 2},
		{4, 5, 2},
		{9, 9, 9},
		{12, 1, 3},
	}
	for _, tt := range tests {
		got := a.tileTexture(gradientTexture(tt.width, tt.height))
		if len(got) != tt.tiles {
			t.Errorf("tileTexture(%dx%d) = %d tiles, want %d",
				tt.width, tt.height, len(got), tt.tiles)
		}
	}
}

func TestTileClippingAndOrder(t *testing.T) {
	a := tilingAtlas(t, 4)

	// 6x5: two columns (4 and 2 wide), two rows (4 and 1 tall).
	tiles := a.tileTexture(gradientTexture(6, 5))
	if len(tiles) != 4 {
		t.Fatalf("got %d tiles, want 4", len(tiles))
	}

	want := []struct {
		column, row   uint32
		width, height uint32
	}{
		{0, 0, 4, 4},
		{1, 0, 2, 4},
		{0, 1, 4, 1},
		{1, 1, 2, 1},
	}
	for i, w := range want {
		tile := tiles[i]
		if tile.column != w.column || tile.row != w.row {
			t.Errorf("tile %d at (%d,%d), want (%d,%d)", i, tile.column, tile.row, w.column, w.row)
		}
		if tile.width != w.width || tile.height != w.height {
			t.Errorf("tile %d is %dx%d, want %dx%d", i, tile.width, tile.height, w.width, w.height)
		}
		if len(tile.data) != int(w.width*w.height) {
			t.Errorf("tile %d has %d bytes, want %d", i, len(tile.data), w.width*w.height)
		}
	}
}

func TestTileReconstruction(t *testing.T) {
	a := tilingAtlas(t, 4)

	src := gradientTexture(10, 7)
	tiles := a.tileTexture(src)

	// Stitch the tiles back together; the result must equal the source.
	out := make([]byte, len(src.Data))
	for _, tile := range tiles {
		x := tile.column * 4
		y := tile.row * 4
		for ty := uint32(0); ty < tile.height; ty++ {
			dst := (y+ty)*src.Width + x
			copy(out[dst:dst+tile.width], tile.data[ty*tile.width:(ty+1)*tile.width])
		}
	}
	if !bytes.Equal(out, src.Data) {
		t.Error("reassembled tiles differ from source texture")
	}
}

func TestTilesOwnTheirBytes(t *testing.T) {
	a := tilingAtlas(t, 4)

	src := gradientTexture(8, 8)
	tiles := a.tileTexture(src)
	orig := append([]byte(nil), tiles[0].data...)

	for i := range src.Data {
		src.Data[i] = 0xFF
	}
	if !bytes.Equal(tiles[0].data, orig) {
		t.Error("tile data aliases the source buffer")
	}
}
