package atlas

import (
	"testing"

	"github.com/gogpu/atlas/backend/software"
)

func meshAtlas(t *testing.T) *LayeredAtlas[string, struct{}] {
	t.Helper()
	a, err := New[string, struct{}](software.New(), Config{
		Width: 1024, Height: 1024, TileSize: 128, Format: FormatMask,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestToMeshSingleTile(t *testing.T) {
	a := meshAtlas(t)

	tex, err := a.Allocate(solidTexture(64, 32, 1), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	area := RectF{MinX: 10, MinY: 20, MaxX: 74, MaxY: 52}
	mesh := tex.ToMesh(area, a)

	if len(mesh.Vertices) != 4 || len(mesh.Indices) != 6 {
		t.Fatalf("got %d vertices %d indices, want 4 and 6",
			len(mesh.Vertices), len(mesh.Indices))
	}

	// At 1:1 scale the quad covers exactly the requested area.
	tl, br := mesh.Vertices[0], mesh.Vertices[2]
	if tl.Position != [2]float32{10, 20} {
		t.Errorf("top-left = %v, want [10 20]", tl.Position)
	}
	if br.Position != [2]float32{74, 52} {
		t.Errorf("bottom-right = %v, want [74 52]", br.Position)
	}

	// The first allocation packs at the atlas origin, so UVs span
	// exactly the tile extent over the atlas size.
	if tl.UV != [2]float32{0, 0} {
		t.Errorf("top-left UV = %v, want [0 0]", tl.UV)
	}
	wantU := float32(64) / 1024
	wantV := float32(32) / 1024
	if br.UV != [2]float32{wantU, wantV} {
		t.Errorf("bottom-right UV = %v, want [%v %v]", br.UV, wantU, wantV)
	}
}

func TestToMeshScalesOutput(t *testing.T) {
	a := meshAtlas(t)

	tex, err := a.Allocate(solidTexture(100, 50, 1), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// Render at half size.
	mesh := tex.ToMesh(RectF{MinX: 0, MinY: 0, MaxX: 50, MaxY: 25}, a)
	br := mesh.Vertices[2]
	if br.Position != [2]float32{50, 25} {
		t.Errorf("scaled bottom-right = %v, want [50 25]", br.Position)
	}
}

func TestToMeshEdgeTiles(t *testing.T) {
	a := meshAtlas(t)

	// 300x10 with a tile size of 128: tiles of widths 128, 128, 44.
	tex, err := a.Allocate(solidTexture(300, 10, 1), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	mesh := tex.ToMesh(RectF{MinX: 0, MinY: 0, MaxX: 300, MaxY: 10}, a)
	if len(mesh.Vertices) != 12 {
		t.Fatalf("got %d vertices, want 12", len(mesh.Vertices))
	}

	// Quads tile the destination contiguously at 1:1 scale.
	wantX := []float32{0, 128, 256}
	wantW := []float32{128, 128, 44}
	for q := 0; q < 3; q++ {
		tl := mesh.Vertices[q*4]
		tr := mesh.Vertices[q*4+1]
		if tl.Position[0] != wantX[q] {
			t.Errorf("quad %d min x = %v, want %v", q, tl.Position[0], wantX[q])
		}
		if got := tr.Position[0] - tl.Position[0]; got != wantW[q] {
			t.Errorf("quad %d width = %v, want %v", q, got, wantW[q])
		}
	}
}

func TestToMeshEmptyArea(t *testing.T) {
	a := meshAtlas(t)
	tex, err := a.Allocate(solidTexture(64, 64, 1), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	mesh := tex.ToMesh(RectF{MinX: 5, MinY: 5, MaxX: 5, MaxY: 50}, a)
	if len(mesh.Vertices) != 0 || len(mesh.Indices) != 0 {
		t.Errorf("empty area produced %d vertices %d indices",
			len(mesh.Vertices), len(mesh.Indices))
	}
}

func TestMeshAppend(t *testing.T) {
	a := meshAtlas(t)
	t1, err := a.Allocate(solidTexture(16, 16, 1), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	t2, err := a.Allocate(solidTexture(16, 16, 2), nil, struct{}{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	mesh := t1.ToMesh(RectF{MaxX: 16, MaxY: 16}, a)
	mesh.Append(t2.ToMesh(RectF{MinX: 20, MinY: 0, MaxX: 36, MaxY: 16}, a))

	if len(mesh.Vertices) != 8 || len(mesh.Indices) != 12 {
		t.Fatalf("appended mesh has %d vertices %d indices, want 8 and 12",
			len(mesh.Vertices), len(mesh.Indices))
	}
	// Second quad's indices reference the second vertex block.
	for _, i := range mesh.Indices[6:] {
		if i < 4 || i > 7 {
			t.Errorf("appended index %d out of range [4,7]", i)
		}
	}
}

func TestQuadWinding(t *testing.T) {
	var mesh TextureMesh
	mesh.appendQuad(RectF{MaxX: 1, MaxY: 1}, 0, 0, 0, 1, 1)

	// Both triangles wind the same way: the signed area of each must
	// share a sign.
	signedArea := func(a, b, c TextureVertex) float32 {
		return (b.Position[0]-a.Position[0])*(c.Position[1]-a.Position[1]) -
			(c.Position[0]-a.Position[0])*(b.Position[1]-a.Position[1])
	}
	t1 := signedArea(mesh.Vertices[mesh.Indices[0]], mesh.Vertices[mesh.Indices[1]], mesh.Vertices[mesh.Indices[2]])
	t2 := signedArea(mesh.Vertices[mesh.Indices[3]], mesh.Vertices[mesh.Indices[4]], mesh.Vertices[mesh.Indices[5]])
	if t1 == 0 || t2 == 0 {
		t.Fatal("degenerate triangle in quad")
	}
	if (t1 > 0) != (t2 > 0) {
		t.Error("quad triangles wind in opposite directions")
	}
}
