// Package exrutil provides whole-file convenience paths over the exr and
// array packages: one-call image and region reads, writes, and file
// inspection.
package exrutil

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/patrickhulce/exrio/array"
	"github.com/patrickhulce/exrio/exr"
)

// ReadImage decodes the first part of the file at path into a dense
// (height, width, channels) array covering its data window.
func ReadImage(path string, channels ...string) (*array.Array, error) {
	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return array.FromImage(f, 0, channels...)
}

// ReadPart decodes one part of the file at path.
func ReadPart(path string, part int, channels ...string) (*array.Array, error) {
	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return array.FromImage(f, part, channels...)
}

// ReadRegion decodes only the chunks overlapping region from the first
// part, returning an array of the region's shape. The region must
// intersect the data window; the array covers the intersection.
func ReadRegion(path string, region exr.Box2i) (*array.Array, error) {
	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := f.Header(0)
	dw := h.DataWindow()
	region = region.Intersect(dw)
	if region.Empty() {
		return nil, fmt.Errorf("%w: region does not intersect data window", exr.ErrInvalidArgument)
	}

	cl := h.Channels()
	names := cl.Names()
	for i := 0; i < cl.Len(); i++ {
		if ch := cl.At(i); ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("%w: channel %q is subsampled", exr.ErrShapeMismatch, ch.Name)
		}
	}

	// Decode into a window that covers whole chunks, then copy the
	// region out. Scanline chunks span the full data window width; tiles
	// are clipped to the tiles the region touches.
	var win exr.Box2i
	if h.IsTiled() {
		td, _ := h.Tiles()
		tx1 := (int(region.Min.X) - int(dw.Min.X)) / int(td.XSize)
		tx2 := (int(region.Max.X) - int(dw.Min.X)) / int(td.XSize)
		ty1 := (int(region.Min.Y) - int(dw.Min.Y)) / int(td.YSize)
		ty2 := (int(region.Max.Y) - int(dw.Min.Y)) / int(td.YSize)
		win = exr.Box2i{
			Min: exr.V2i{
				X: dw.Min.X + int32(tx1*int(td.XSize)),
				Y: dw.Min.Y + int32(ty1*int(td.YSize)),
			},
			Max: exr.V2i{
				X: dw.Min.X + int32((tx2+1)*int(td.XSize)) - 1,
				Y: dw.Min.Y + int32((ty2+1)*int(td.YSize)) - 1,
			},
		}
		win = win.Intersect(dw)
		fb, slices := regionFrameBuffer(cl, win)
		r, err := exr.NewTiledReader(f)
		if err != nil {
			return nil, err
		}
		r.SetFrameBuffer(fb)
		if err := r.ReadTiles(tx1, ty1, tx2, ty2); err != nil {
			return nil, err
		}
		return regionArray(names, slices, win, region)
	}

	win = exr.Box2i{
		Min: exr.V2i{X: dw.Min.X, Y: region.Min.Y},
		Max: exr.V2i{X: dw.Max.X, Y: region.Max.Y},
	}
	fb, slices := regionFrameBuffer(cl, win)
	r, err := exr.NewScanlineReader(f)
	if err != nil {
		return nil, err
	}
	r.SetFrameBuffer(fb)
	if err := r.ReadPixels(int(region.Min.Y), int(region.Max.Y)); err != nil {
		return nil, err
	}
	return regionArray(names, slices, win, region)
}

func regionFrameBuffer(cl *exr.ChannelList, win exr.Box2i) (*exr.FrameBuffer, map[string]*exr.Slice) {
	fb := exr.NewFrameBuffer()
	slices := make(map[string]*exr.Slice, cl.Len())
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		s := exr.NewSlice(ch.Type, win)
		fb.Insert(ch.Name, s)
		slices[ch.Name] = s
	}
	return fb, slices
}

func regionArray(names []string, slices map[string]*exr.Slice, win, region exr.Box2i) (*array.Array, error) {
	dtype := array.Float32
	uniform := true
	first := slices[names[0]].Type
	for _, n := range names[1:] {
		if slices[n].Type != first {
			uniform = false
		}
	}
	if uniform {
		switch first {
		case exr.PixelTypeUint:
			dtype = array.Uint32
		case exr.PixelTypeHalf:
			dtype = array.Half
		}
	} else {
		for _, n := range names {
			if slices[n].Type == exr.PixelTypeUint {
				return nil, fmt.Errorf("%w: cannot mix UINT channel %q with float channels",
					exr.ErrDtypeMismatch, n)
			}
		}
	}
	a, err := array.New(dtype, region.Height(), region.Width(), names)
	if err != nil {
		return nil, err
	}
	minX, minY := int(region.Min.X), int(region.Min.Y)
	for c, n := range names {
		s := slices[n]
		for y := 0; y < region.Height(); y++ {
			for x := 0; x < region.Width(); x++ {
				if dtype == array.Uint32 {
					a.SetUint(y, x, c, s.Uint(minX+x, minY+y))
				} else {
					a.SetFloat(y, x, c, s.Float(minX+x, minY+y))
				}
			}
		}
	}
	return a, nil
}

// WriteImage encodes a as a single-part file at path with h's layout and
// compression.
func WriteImage(path string, h *exr.Header, a *array.Array) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.Write(out, h); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// ListChannels returns the channel names of one part, in channel-list
// order.
func ListChannels(path string, part int) ([]string, error) {
	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if part < 0 || part >= f.NumParts() {
		return nil, fmt.Errorf("%w: part %d of %d", exr.ErrInvalidArgument, part, f.NumParts())
	}
	return f.Header(part).Channels().Names(), nil
}

// PartInfo describes one part of an open file.
type PartInfo struct {
	Name          string
	Type          string
	Compression   exr.Compression
	DataWindow    exr.Box2i
	DisplayWindow exr.Box2i
	Channels      []string
	Tiled         bool
	Levels        int
	Chunks        int
}

// FileInfo describes a file's parts without decoding any pixels.
type FileInfo struct {
	Version   uint32
	MultiPart bool
	Parts     []PartInfo
}

// GetFileInfo opens the file at path and summarizes its headers.
func GetFileInfo(path string) (*FileInfo, error) {
	f, err := exr.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &FileInfo{Version: f.Version(), MultiPart: f.IsMultiPart()}
	for i := 0; i < f.NumParts(); i++ {
		h := f.Header(i)
		pi := PartInfo{
			Name:          h.Name(),
			Type:          h.PartType(),
			Compression:   h.Compression(),
			DataWindow:    h.DataWindow(),
			DisplayWindow: h.DisplayWindow(),
			Channels:      h.Channels().Names(),
			Tiled:         h.IsTiled(),
			Levels:        1,
			Chunks:        h.ChunksInFile(),
		}
		if pi.Tiled {
			pi.Levels = h.NumXLevels() * h.NumYLevels()
			if td, ok := h.Tiles(); ok && td.Mode == exr.LevelModeMipmap {
				pi.Levels = h.NumXLevels()
			}
		}
		info.Parts = append(info.Parts, pi)
	}
	return info, nil
}

// ValidationResult collects what a full-file scan found.
type ValidationResult struct {
	Valid  bool
	Issues []string
}

// ValidateFile opens the file at path and reads and decompresses every
// chunk, collecting one issue per failure instead of stopping at the
// first.
func ValidateFile(path string) (*ValidationResult, error) {
	res := &ValidationResult{Valid: true}
	f, err := exr.OpenFile(path)
	if err != nil {
		res.Valid = false
		res.Issues = append(res.Issues, err.Error())
		return res, nil
	}
	defer f.Close()

	for part := 0; part < f.NumParts(); part++ {
		h := f.Header(part)
		fb := exr.NewFrameBuffer()
		for _, name := range h.Channels().Names() {
			ch, _ := h.Channels().Get(name)
			fb.Insert(name, exr.NewSampledSlice(ch.Type, h.DataWindow(),
				int(ch.XSampling), int(ch.YSampling)))
		}
		if h.IsTiled() {
			r, err := exr.NewTiledReaderPart(f, part)
			if err != nil {
				res.Issues = append(res.Issues, err.Error())
				continue
			}
			r.SetFrameBuffer(fb)
			for ly := 0; ly < h.NumYLevels(); ly++ {
				for lx := 0; lx < h.NumXLevels(); lx++ {
					if td, _ := h.Tiles(); td.Mode == exr.LevelModeMipmap && lx != ly {
						continue
					}
					if err := r.ReadLevel(lx, ly); err != nil {
						res.Issues = append(res.Issues, err.Error())
					}
				}
			}
			continue
		}
		r, err := exr.NewScanlineReaderPart(f, part)
		if err != nil {
			res.Issues = append(res.Issues, err.Error())
			continue
		}
		r.SetFrameBuffer(fb)
		if err := r.ReadAll(); err != nil {
			res.Issues = append(res.Issues, err.Error())
		}
	}
	res.Valid = len(res.Issues) == 0
	return res, nil
}

// SplitLayers groups channel names by their dot-separated layer prefix.
// Channels without a period land under the empty layer name.
func SplitLayers(h *exr.Header) map[string][]string {
	layers := map[string][]string{}
	for _, name := range h.Channels().Names() {
		layer := ""
		if i := strings.LastIndex(name, "."); i >= 0 {
			layer = name[:i]
		}
		layers[layer] = append(layers[layer], name)
	}
	return layers
}

// ListLayers returns the layer names of h, sorted, the base layer first.
func ListLayers(h *exr.Header) []string {
	layers := SplitLayers(h)
	names := make([]string, 0, len(layers))
	for l := range layers {
		names = append(names, l)
	}
	sort.Strings(names)
	return names
}
