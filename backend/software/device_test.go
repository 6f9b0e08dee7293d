package software

import (
	"bytes"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/atlas/gpucore"
)

func newTexture(t *testing.T, d *Device, w, h, layers uint32) gpucore.TextureID {
	t.Helper()
	id, err := d.CreateTexture(gpucore.TextureDesc{
		Label:  "test",
		Width:  w,
		Height: h,
		Layers: layers,
		Format: gputypes.TextureFormatR8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return id
}

func TestWriteAndRead(t *testing.T) {
	d := New()
	id := newTexture(t, d, 16, 16, 2)

	data := []byte{1, 2, 3, 4}
	d.WriteTexture(id, gpucore.Origin{X: 4, Y: 5, Layer: 1}, gpucore.Extent{Width: 2, Height: 2}, data, 2)

	got, err := d.ReadRegion(id, 1, 4, 5, 2, 2)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back %v, want %v", got, data)
	}

	// Layer 0 was not touched.
	got, err = d.ReadRegion(id, 0, 4, 5, 2, 2)
	if err != nil {
		t.Fatalf("ReadRegion layer 0: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("layer 0 = %v, want zeros", got)
	}
}

func TestWriteRespectsPitch(t *testing.T) {
	d := New()
	id := newTexture(t, d, 8, 8, 1)

	// 2x2 region inside rows of 4 bytes each.
	data := []byte{1, 2, 99, 99, 3, 4, 99, 99}
	d.WriteTexture(id, gpucore.Origin{}, gpucore.Extent{Width: 2, Height: 2}, data, 4)

	got, err := d.ReadRegion(id, 0, 0, 0, 3, 2)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	want := []byte{1, 2, 0, 3, 4, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("read back %v, want %v", got, want)
	}
}

func TestCopyTexture(t *testing.T) {
	d := New()
	src := newTexture(t, d, 8, 8, 2)
	dst := newTexture(t, d, 16, 16, 2)

	d.WriteTexture(src, gpucore.Origin{X: 1, Y: 1, Layer: 1}, gpucore.Extent{Width: 2, Height: 1}, []byte{7, 8}, 2)

	if err := d.CopyTexture(src, dst, 2, 8, 8); err != nil {
		t.Fatalf("CopyTexture: %v", err)
	}
	got, err := d.ReadRegion(dst, 1, 1, 1, 2, 1)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if !bytes.Equal(got, []byte{7, 8}) {
		t.Errorf("copied region = %v, want [7 8]", got)
	}
}

func TestCopyBoundsChecked(t *testing.T) {
	d := New()
	src := newTexture(t, d, 8, 8, 1)
	dst := newTexture(t, d, 4, 4, 1)

	if err := d.CopyTexture(src, dst, 1, 8, 8); err == nil {
		t.Error("copy larger than destination should fail")
	}
	if err := d.CopyTexture(src, dst, 2, 4, 4); err == nil {
		t.Error("copy of more layers than exist should fail")
	}
}

func TestLimitsEnforced(t *testing.T) {
	d := NewWithLimits(gpucore.Limits{MaxTextureDimension2D: 64, MaxTextureArrayLayers: 2})

	if _, err := d.CreateTexture(gpucore.TextureDesc{
		Width: 128, Height: 64, Layers: 1,
		Format: gputypes.TextureFormatR8Unorm,
	}); err == nil {
		t.Error("oversized texture should be rejected")
	}
	if _, err := d.CreateTexture(gpucore.TextureDesc{
		Width: 64, Height: 64, Layers: 3,
		Format: gputypes.TextureFormatR8Unorm,
	}); err == nil {
		t.Error("too many layers should be rejected")
	}
}

func TestDestroyReleases(t *testing.T) {
	d := New()
	id := newTexture(t, d, 8, 8, 1)
	view, err := d.CreateView(id)
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}

	if got := d.TextureCount(); got != 1 {
		t.Fatalf("TextureCount = %d, want 1", got)
	}
	d.DestroyView(view)
	d.DestroyTexture(id)
	if got := d.TextureCount(); got != 0 {
		t.Errorf("TextureCount after destroy = %d, want 0", got)
	}
	if _, err := d.CreateView(id); err == nil {
		t.Error("view of destroyed texture should fail")
	}
}
