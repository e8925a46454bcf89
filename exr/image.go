package exr

import (
	"fmt"
	"io"
)

// Image is one part decoded in full: a header plus a dense plane per
// channel covering the image window. Planes are addressed in absolute
// data-window coordinates.
type Image struct {
	header *Header
	window Box2i
	slices map[string]*Slice
	names  []string
}

// NewImage allocates planes for every channel of h over its data window.
func NewImage(h *Header) *Image {
	return newImageWindow(h, h.DataWindow())
}

// newImageWindow allocates planes over an explicit window, used for
// reduced-resolution levels.
func newImageWindow(h *Header, window Box2i) *Image {
	img := &Image{header: h, window: window, slices: map[string]*Slice{}}
	cl := h.Channels()
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		img.slices[ch.Name] = NewSampledSlice(ch.Type, window, int(ch.XSampling), int(ch.YSampling))
		img.names = append(img.names, ch.Name)
	}
	return img
}

// Header returns the image's header.
func (img *Image) Header() *Header { return img.header }

// Window returns the pixel window the planes cover.
func (img *Image) Window() Box2i { return img.window }

// ChannelNames returns the channel names in channel-list order.
func (img *Image) ChannelNames() []string { return img.names }

// Slice returns the plane for a channel, or nil.
func (img *Image) Slice(name string) *Slice { return img.slices[name] }

// FrameBuffer returns a frame buffer over the image's planes.
func (img *Image) FrameBuffer() *FrameBuffer {
	fb := NewFrameBuffer()
	for _, name := range img.names {
		fb.Insert(name, img.slices[name])
	}
	return fb
}

// Float returns a sample widened to float32.
func (img *Image) Float(channel string, x, y int) float32 {
	return img.slices[channel].Float(x, y)
}

// SetFloat stores a sample, converting to the channel's type.
func (img *Image) SetFloat(channel string, x, y int, v float32) {
	img.slices[channel].SetFloat(x, y, v)
}

// DecodeImage decodes part 0 of a file in full. Tiled parts decode their
// full-resolution level.
func DecodeImage(f *File) (*Image, error) {
	return DecodeImagePart(f, 0)
}

// DecodeImagePart decodes one part in full.
func DecodeImagePart(f *File, part int) (*Image, error) {
	h := f.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if h.IsTiled() {
		return DecodeImageLevel(f, part, 0, 0)
	}
	img := NewImage(h)
	r, err := NewScanlineReaderPart(f, part)
	if err != nil {
		return nil, err
	}
	r.SetFrameBuffer(img.FrameBuffer())
	if err := r.ReadAll(); err != nil {
		return nil, err
	}
	return img, nil
}

// DecodeImageLevel decodes one resolution level of a tiled part. The
// returned image's window starts at the data window minimum and spans the
// level's dimensions.
func DecodeImageLevel(f *File, part, levelX, levelY int) (*Image, error) {
	h := f.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	r, err := NewTiledReaderPart(f, part)
	if err != nil {
		return nil, err
	}
	dw := h.DataWindow()
	window := Box2i{
		Min: dw.Min,
		Max: V2i{
			X: dw.Min.X + int32(h.LevelWidth(levelX)) - 1,
			Y: dw.Min.Y + int32(h.LevelHeight(levelY)) - 1,
		},
	}
	img := newImageWindow(h, window)
	r.SetFrameBuffer(img.FrameBuffer())
	if err := r.ReadLevel(levelX, levelY); err != nil {
		return nil, err
	}
	return img, nil
}

// EncodeImage writes an image as a single-part file. Tiled headers with a
// single level write their tiles; multi-level headers need WriteMipmap or
// WriteRipmap, which generate the reduced levels.
func EncodeImage(w io.WriteSeeker, img *Image) error {
	h := img.header
	if td, ok := h.Tiles(); ok {
		if td.Mode != LevelModeOne {
			return fmt.Errorf("%w: multi-level header; use WriteMipmap or WriteRipmap", ErrInvalidArgument)
		}
		tw, err := NewTiledWriter(w, h)
		if err != nil {
			return err
		}
		tw.SetFrameBuffer(img.FrameBuffer())
		if err := tw.WriteLevel(0, 0); err != nil {
			return err
		}
		return tw.Close()
	}
	sw, err := NewScanlineWriter(w, h)
	if err != nil {
		return err
	}
	sw.SetFrameBuffer(img.FrameBuffer())
	if err := sw.WriteAll(); err != nil {
		return err
	}
	return sw.Close()
}

// EncodeImages writes one part per image as a multi-part file. Part names
// default to part0, part1, ... when the headers carry none.
func EncodeImages(w io.WriteSeeker, images []*Image) error {
	headers := make([]*Header, len(images))
	for i, img := range images {
		headers[i] = img.header
	}
	fw, err := NewMultiPartWriter(w, headers)
	if err != nil {
		return err
	}
	for i, img := range images {
		if td, ok := img.header.Tiles(); ok {
			if td.Mode != LevelModeOne {
				return fmt.Errorf("%w: part %d: multi-level parts need WriteMipmap", ErrInvalidArgument, i)
			}
			tw, err := NewTiledWriterPart(fw, i)
			if err != nil {
				return err
			}
			tw.SetFrameBuffer(img.FrameBuffer())
			if err := tw.WriteLevel(0, 0); err != nil {
				return err
			}
			continue
		}
		sw, err := NewScanlineWriterPart(fw, i)
		if err != nil {
			return err
		}
		sw.SetFrameBuffer(img.FrameBuffer())
		if err := sw.WriteAll(); err != nil {
			return err
		}
	}
	return fw.Close()
}
