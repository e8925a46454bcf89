package exr

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// previewGamma maps a linear sample to an 8-bit preview value with the
// conventional preview transfer curve.
func previewGamma(v float32) uint8 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	x := math.Pow(5.5555*float64(v), 0.4545) * 84.66
	if x >= 255 {
		return 255
	}
	return uint8(x)
}

func previewAlpha(v float32) uint8 {
	switch {
	case v <= 0 || math.IsNaN(float64(v)):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// GeneratePreview renders img's R, G, B and A channels into a preview
// thumbnail no larger than maxWidth by maxHeight, preserving aspect
// ratio. Missing color channels read as black, a missing alpha channel
// as opaque.
func GeneratePreview(img *Image, maxWidth, maxHeight int) (*Preview, error) {
	if maxWidth < 1 || maxHeight < 1 {
		return nil, fmt.Errorf("%w: preview bounds %dx%d", ErrInvalidArgument, maxWidth, maxHeight)
	}
	w := img.window.Width()
	h := img.window.Height()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: empty image window", ErrInvalidArgument)
	}

	full := image.NewRGBA(image.Rect(0, 0, w, h))
	r := img.Slice("R")
	g := img.Slice("G")
	b := img.Slice("B")
	a := img.Slice("A")
	sample := func(s *Slice, x, y int) float32 {
		if s == nil {
			return 0
		}
		return s.Float(x, y)
	}
	minX, minY := int(img.window.Min.X), int(img.window.Min.Y)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := full.PixOffset(x, y)
			full.Pix[i+0] = previewGamma(sample(r, minX+x, minY+y))
			full.Pix[i+1] = previewGamma(sample(g, minX+x, minY+y))
			full.Pix[i+2] = previewGamma(sample(b, minX+x, minY+y))
			if a == nil {
				full.Pix[i+3] = 255
			} else {
				full.Pix[i+3] = previewAlpha(a.Float(minX+x, minY+y))
			}
		}
	}

	thumb := resize.Thumbnail(uint(maxWidth), uint(maxHeight), full, resize.Lanczos3)
	tb := thumb.Bounds()
	p := &Preview{
		Width:  uint32(tb.Dx()),
		Height: uint32(tb.Dy()),
		RGBA:   make([]byte, 4*tb.Dx()*tb.Dy()),
	}
	pos := 0
	for y := tb.Min.Y; y < tb.Max.Y; y++ {
		for x := tb.Min.X; x < tb.Max.X; x++ {
			cr, cg, cb, ca := thumb.At(x, y).RGBA()
			p.RGBA[pos+0] = uint8(cr >> 8)
			p.RGBA[pos+1] = uint8(cg >> 8)
			p.RGBA[pos+2] = uint8(cb >> 8)
			p.RGBA[pos+3] = uint8(ca >> 8)
			pos += 4
		}
	}
	return p, nil
}

// PreviewImage converts a preview attribute's pixels to an image.RGBA.
func PreviewImage(p *Preview) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(p.Width), int(p.Height)))
	copy(img.Pix, p.RGBA)
	return img
}
