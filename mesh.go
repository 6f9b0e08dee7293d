package atlas

import "github.com/gogpu/atlas/pack"

// RectF is an axis-aligned rectangle in a destination coordinate space.
type RectF struct {
	MinX float32
	MinY float32
	MaxX float32
	MaxY float32
}

// Width returns the rectangle width.
func (r RectF) Width() float32 { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r RectF) Height() float32 { return r.MaxY - r.MinY }

// Empty returns true if the rectangle has no area.
func (r RectF) Empty() bool { return r.MaxX <= r.MinX || r.MaxY <= r.MinY }

// TextureVertex is one vertex of an atlas quad: a destination position,
// the atlas array layer to sample, and UV coordinates within that layer.
type TextureVertex struct {
	Position [2]float32
	Layer    uint32
	UV       [2]float32
}

// quadIndices is the index pattern for one quad, two counter-wound
// triangles over vertices TL, TR, BR, BL.
var quadIndices = [6]uint32{0, 1, 2, 0, 2, 3}

// TextureMesh is a quad-list mesh: four vertices and six indices per
// packed tile, ready for indexed drawing.
type TextureMesh struct {
	Vertices []TextureVertex
	Indices  []uint32
}

// Append concatenates other onto m, offsetting other's indices past m's
// existing vertices.
func (m *TextureMesh) Append(other TextureMesh) {
	offset := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, i := range other.Indices {
		m.Indices = append(m.Indices, offset+i)
	}
}

// appendQuad emits one textured quad covering area, sampling the given
// layer between (u0,v0) and (u1,v1).
func (m *TextureMesh) appendQuad(area RectF, layer uint32, u0, v0, u1, v1 float32) {
	offset := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices,
		TextureVertex{Position: [2]float32{area.MinX, area.MinY}, Layer: layer, UV: [2]float32{u0, v0}},
		TextureVertex{Position: [2]float32{area.MaxX, area.MinY}, Layer: layer, UV: [2]float32{u1, v0}},
		TextureVertex{Position: [2]float32{area.MaxX, area.MaxY}, Layer: layer, UV: [2]float32{u1, v1}},
		TextureVertex{Position: [2]float32{area.MinX, area.MaxY}, Layer: layer, UV: [2]float32{u0, v1}},
	)
	for _, i := range quadIndices {
		m.Indices = append(m.Indices, offset+i)
	}
}

// TexelSource reports the texel dimensions UVs are computed against.
// Any LayeredAtlas satisfies it; the indirection exists because ToMesh
// must not care about the atlas's key or data type parameters.
type TexelSource interface {
	PixelSize() pack.Size
}

// ToMesh projects the allocation's packed tiles into a quad mesh
// covering area in the destination coordinate space.
//
// Each tile's destination sub-rectangle scales the tile's grid position
// and its actual texel dimensions by area size over original size, so
// clipped edge tiles land exactly. UVs divide the tile's packed
// rectangle by the atlas texel dimensions. An empty area produces an
// empty mesh.
func (t *AllocatedTexture[D]) ToMesh(area RectF, atlas TexelSource) TextureMesh {
	var mesh TextureMesh
	if area.Empty() || t.width == 0 || t.height == 0 {
		return mesh
	}

	ratioW := area.Width() / float32(t.width)
	ratioH := area.Height() / float32(t.height)

	atlasSize := atlas.PixelSize()
	atlasW := float32(atlasSize.Width)
	atlasH := float32(atlasSize.Height)

	for _, tile := range t.tiles {
		rect := tile.location.Rect

		// Edge tiles are smaller than tileSize; use the packed rect's
		// real dimensions so the destination sub-rectangle matches the
		// clipped tile, e.g. with a tile size of 3:
		//   --------------
		//   111 | 111 | 11
		//   111 | 111 | 11   <- right edge tile is 2x3
		//   111 | 111 | 11
		//   --------------
		//   111 | 111 | 11   <- bottom edge tiles are 3x1 and 2x1
		realW := float32(rect.Width())
		realH := float32(rect.Height())

		x1 := area.MinX + float32(tile.column*t.tileSize)*ratioW
		y1 := area.MinY + float32(tile.row*t.tileSize)*ratioH
		tileArea := RectF{
			MinX: x1,
			MinY: y1,
			MaxX: x1 + realW*ratioW,
			MaxY: y1 + realH*ratioH,
		}

		u0 := float32(rect.Min.X) / atlasW
		v0 := float32(rect.Min.Y) / atlasH
		u1 := float32(rect.Max.X) / atlasW
		v1 := float32(rect.Max.Y) / atlasH

		mesh.appendQuad(tileArea, tile.location.Layer, u0, v0, u1, v1)
	}
	return mesh
}
