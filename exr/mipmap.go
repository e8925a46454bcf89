package exr

import (
	"fmt"
	"io"
)

// downsampleAxis halves an image along one or both axes with a box filter
// in float space. Uint channels take the top-left source sample instead of
// an average, since averaging identifier data is meaningless.
func downsample(src *Image, halveX, halveY bool, width, height int) *Image {
	h := src.header
	window := Box2i{
		Min: src.window.Min,
		Max: V2i{
			X: src.window.Min.X + int32(width) - 1,
			Y: src.window.Min.Y + int32(height) - 1,
		},
	}
	dst := newImageWindow(h, window)

	srcW := src.window.Width()
	srcH := src.window.Height()
	minX, minY := int(src.window.Min.X), int(src.window.Min.Y)
	for _, name := range src.names {
		ss := src.slices[name]
		ds := dst.slices[name]
		for y := 0; y < height; y++ {
			sy0 := y
			sy1 := y
			if halveY {
				sy0 = 2 * y
				sy1 = 2*y + 1
				if sy1 >= srcH {
					sy1 = srcH - 1
				}
			}
			for x := 0; x < width; x++ {
				sx0 := x
				sx1 := x
				if halveX {
					sx0 = 2 * x
					sx1 = 2*x + 1
					if sx1 >= srcW {
						sx1 = srcW - 1
					}
				}
				if ss.Type == PixelTypeUint {
					ds.SetUint(minX+x, minY+y, ss.Uint(minX+sx0, minY+sy0))
					continue
				}
				sum := ss.Float(minX+sx0, minY+sy0) + ss.Float(minX+sx1, minY+sy0) +
					ss.Float(minX+sx0, minY+sy1) + ss.Float(minX+sx1, minY+sy1)
				ds.SetFloat(minX+x, minY+y, sum/4)
			}
		}
	}
	return dst
}

func checkUnitSampling(h *Header) error {
	cl := h.Channels()
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return fmt.Errorf("%w: channel %q is subsampled; level generation needs unit sampling",
				ErrInvalidArgument, ch.Name)
		}
	}
	return nil
}

// GenerateMipmaps returns the full mipmap chain of img, level 0 first.
// The image's header must declare mipmap tiling.
func GenerateMipmaps(img *Image) ([]*Image, error) {
	h := img.header
	td, ok := h.Tiles()
	if !ok || td.Mode != LevelModeMipmap {
		return nil, fmt.Errorf("%w: header does not declare mipmap tiling", ErrInvalidArgument)
	}
	if err := checkUnitSampling(h); err != nil {
		return nil, err
	}
	levels := []*Image{img}
	for l := 1; l < h.NumXLevels(); l++ {
		prev := levels[l-1]
		w := h.LevelWidth(l)
		ht := h.LevelHeight(l)
		levels = append(levels, downsample(prev, prev.window.Width() > w, prev.window.Height() > ht, w, ht))
	}
	return levels, nil
}

// WriteMipmap writes a mipmap-tiled file, generating every reduced level
// from img with a box filter.
func WriteMipmap(w io.WriteSeeker, img *Image) error {
	levels, err := GenerateMipmaps(img)
	if err != nil {
		return err
	}
	tw, err := NewTiledWriter(w, img.header)
	if err != nil {
		return err
	}
	for l, level := range levels {
		tw.SetFrameBuffer(level.FrameBuffer())
		if err := tw.WriteLevel(l, l); err != nil {
			return err
		}
	}
	return tw.Close()
}

// GenerateRipmaps returns the full ripmap grid of img indexed
// [levelY][levelX], with img at [0][0]. The image's header must declare
// ripmap tiling.
func GenerateRipmaps(img *Image) ([][]*Image, error) {
	h := img.header
	td, ok := h.Tiles()
	if !ok || td.Mode != LevelModeRipmap {
		return nil, fmt.Errorf("%w: header does not declare ripmap tiling", ErrInvalidArgument)
	}
	if err := checkUnitSampling(h); err != nil {
		return nil, err
	}
	nx, ny := h.NumXLevels(), h.NumYLevels()
	grid := make([][]*Image, ny)
	for ly := 0; ly < ny; ly++ {
		grid[ly] = make([]*Image, nx)
		for lx := 0; lx < nx; lx++ {
			switch {
			case lx == 0 && ly == 0:
				grid[0][0] = img
			case lx == 0:
				prev := grid[ly-1][0]
				grid[ly][0] = downsample(prev, false, true, h.LevelWidth(0), h.LevelHeight(ly))
			default:
				prev := grid[ly][lx-1]
				grid[ly][lx] = downsample(prev, true, false, h.LevelWidth(lx), h.LevelHeight(ly))
			}
		}
	}
	return grid, nil
}

// WriteRipmap writes a ripmap-tiled file, generating every reduced level
// from img.
func WriteRipmap(w io.WriteSeeker, img *Image) error {
	grid, err := GenerateRipmaps(img)
	if err != nil {
		return err
	}
	tw, err := NewTiledWriter(w, img.header)
	if err != nil {
		return err
	}
	for ly := range grid {
		for lx := range grid[ly] {
			tw.SetFrameBuffer(grid[ly][lx].FrameBuffer())
			if err := tw.WriteLevel(lx, ly); err != nil {
				return err
			}
		}
	}
	return tw.Close()
}
