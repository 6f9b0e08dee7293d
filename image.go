package atlas

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// FromImage converts img into an RGBA8 texture ready for an atlas with
// FormatRGBA8 or FormatBGRA8 content uploaded as-is.
func FromImage(img image.Image) UnallocatedTexture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != w*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}
	return NewUnallocatedTexture(rgba.Pix, uint32(w), uint32(h))
}

// FromAlpha converts an alpha-only image into a single-channel texture
// for a FormatMask atlas.
func FromAlpha(img *image.Alpha) UnallocatedTexture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if img.Stride == w {
		return NewUnallocatedTexture(img.Pix, uint32(w), uint32(h))
	}
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(data[y*w:(y+1)*w], img.Pix[y*img.Stride:y*img.Stride+w])
	}
	return NewUnallocatedTexture(data, uint32(w), uint32(h))
}

// Scaled resamples img to width x height with Catmull-Rom interpolation
// and returns the result as an RGBA8 texture. Scaling before allocation
// keeps oversized sources from forcing the atlas to grow.
func Scaled(img image.Image, width, height uint32) UnallocatedTexture {
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return NewUnallocatedTexture(dst.Pix, width, height)
}
