// Package array bridges decoded EXR pixel planes to dense,
// channel-interleaved arrays of shape (height, width, channels), the
// layout numeric hosts exchange.
package array

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/patrickhulce/exrio/exr"
	"github.com/patrickhulce/exrio/half"
)

// Dtype is the element type of an Array.
type Dtype int

const (
	Half Dtype = iota
	Float32
	Uint32
)

// Size returns the element size in bytes.
func (d Dtype) Size() int {
	if d == Half {
		return 2
	}
	return 4
}

func (d Dtype) String() string {
	switch d {
	case Half:
		return "half"
	case Float32:
		return "float32"
	case Uint32:
		return "uint32"
	}
	return fmt.Sprintf("Dtype(%d)", int(d))
}

// naturalDtype maps a channel's pixel type to the element type that
// carries it exactly.
func naturalDtype(t exr.PixelType) Dtype {
	switch t {
	case exr.PixelTypeUint:
		return Uint32
	case exr.PixelTypeHalf:
		return Half
	default:
		return Float32
	}
}

// carries reports whether elements of dtype d can hold samples of pixel
// type t. Float32 widens Half; nothing carries Uint except Uint32.
func (d Dtype) carries(t exr.PixelType) bool {
	switch d {
	case Uint32:
		return t == exr.PixelTypeUint
	case Half:
		return t == exr.PixelTypeHalf
	default:
		return t == exr.PixelTypeHalf || t == exr.PixelTypeFloat
	}
}

// Array is a dense (height, width, channels) pixel block. Samples are
// stored row-major, channels interleaved innermost, little-endian.
// Channel order is fixed at construction and never reordered.
type Array struct {
	dtype  Dtype
	height int
	width  int
	names  []string
	index  map[string]int
	data   []byte
}

// New returns a zero-filled array of the given shape.
func New(dtype Dtype, height, width int, names []string) (*Array, error) {
	if height < 1 || width < 1 || len(names) < 1 {
		return nil, fmt.Errorf("%w: array shape (%d, %d, %d)",
			exr.ErrShapeMismatch, height, width, len(names))
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %q", exr.ErrInvalidArgument, n)
		}
		index[n] = i
	}
	return &Array{
		dtype:  dtype,
		height: height,
		width:  width,
		names:  append([]string(nil), names...),
		index:  index,
		data:   make([]byte, height*width*len(names)*dtype.Size()),
	}, nil
}

// Wrap returns an array over caller-owned bytes. len(data) must equal
// height*width*len(names)*dtype.Size().
func Wrap(dtype Dtype, height, width int, names []string, data []byte) (*Array, error) {
	a, err := New(dtype, height, width, names)
	if err != nil {
		return nil, err
	}
	if len(data) != len(a.data) {
		return nil, fmt.Errorf("%w: %d data bytes for shape (%d, %d, %d) %s",
			exr.ErrShapeMismatch, len(data), height, width, len(names), dtype)
	}
	a.data = data
	return a, nil
}

// Dtype returns the element type.
func (a *Array) Dtype() Dtype { return a.dtype }

// Shape returns (height, width, channels).
func (a *Array) Shape() (height, width, channels int) {
	return a.height, a.width, len(a.names)
}

// Names returns the channel names in storage order.
func (a *Array) Names() []string { return a.names }

// Index returns the channel position of name, or -1.
func (a *Array) Index(name string) int {
	if i, ok := a.index[name]; ok {
		return i
	}
	return -1
}

// Bytes returns the backing buffer: height*width*channels elements,
// row-major, channels innermost, little-endian.
func (a *Array) Bytes() []byte { return a.data }

func (a *Array) offset(y, x, c int) int {
	return ((y*a.width+x)*len(a.names) + c) * a.dtype.Size()
}

// Float returns the sample at (y, x, c) widened to float32.
func (a *Array) Float(y, x, c int) float32 {
	off := a.offset(y, x, c)
	switch a.dtype {
	case Half:
		return half.Half(binary.LittleEndian.Uint16(a.data[off:])).Float32()
	case Uint32:
		return float32(binary.LittleEndian.Uint32(a.data[off:]))
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(a.data[off:]))
	}
}

// SetFloat stores v at (y, x, c), converting to the element type.
func (a *Array) SetFloat(y, x, c int, v float32) {
	off := a.offset(y, x, c)
	switch a.dtype {
	case Half:
		binary.LittleEndian.PutUint16(a.data[off:], uint16(half.FromFloat32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(a.data[off:], uint32(v))
	default:
		binary.LittleEndian.PutUint32(a.data[off:], math.Float32bits(v))
	}
}

// Uint returns the sample at (y, x, c) of a Uint32 array.
func (a *Array) Uint(y, x, c int) uint32 {
	return binary.LittleEndian.Uint32(a.data[a.offset(y, x, c):])
}

// SetUint stores v at (y, x, c) of a Uint32 array.
func (a *Array) SetUint(y, x, c int, v uint32) {
	binary.LittleEndian.PutUint32(a.data[a.offset(y, x, c):], v)
}

// Plane copies one channel out as a row-major []float32 of length
// height*width.
func (a *Array) Plane(name string) ([]float32, error) {
	c := a.Index(name)
	if c < 0 {
		return nil, fmt.Errorf("%w: no channel %q", exr.ErrInvalidArgument, name)
	}
	out := make([]float32, a.height*a.width)
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			out[y*a.width+x] = a.Float(y, x, c)
		}
	}
	return out, nil
}

// selectChannels resolves the requested channel subset against the
// header, keeping the given order, or all channels in channel-list order
// when none are named. Subsampled channels cannot fill a dense array.
func selectChannels(h *exr.Header, channels []string) ([]exr.Channel, error) {
	cl := h.Channels()
	var out []exr.Channel
	if len(channels) == 0 {
		for i := 0; i < cl.Len(); i++ {
			out = append(out, cl.At(i))
		}
	} else {
		for _, name := range channels {
			ch, ok := cl.Get(name)
			if !ok {
				return nil, fmt.Errorf("%w: no channel %q", exr.ErrInvalidArgument, name)
			}
			out = append(out, ch)
		}
	}
	for _, ch := range out {
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("%w: channel %q is subsampled %dx%d",
				exr.ErrShapeMismatch, ch.Name, ch.XSampling, ch.YSampling)
		}
	}
	return out, nil
}

// autoDtype picks the element type for a channel set: the shared natural
// type when uniform, Float32 otherwise. Mixing UINT with float types has
// no widening target.
func autoDtype(chans []exr.Channel) (Dtype, error) {
	d := naturalDtype(chans[0].Type)
	for _, ch := range chans[1:] {
		if naturalDtype(ch.Type) != d {
			d = Float32
		}
	}
	if d == Float32 {
		for _, ch := range chans {
			if ch.Type == exr.PixelTypeUint {
				return 0, fmt.Errorf("%w: cannot mix UINT channel %q with float channels",
					exr.ErrDtypeMismatch, ch.Name)
			}
		}
	}
	return d, nil
}

// FromImage decodes one part of f into a dense array covering its data
// window. With no channels named, all channels are taken in channel-list
// order; otherwise the named channels are taken in the given order. The
// element type is the channels' shared natural type, widening mixed
// HALF/FLOAT sets to Float32.
func FromImage(f *exr.File, part int, channels ...string) (*Array, error) {
	chans, err := selectChannels(f.Header(part), channels)
	if err != nil {
		return nil, err
	}
	d, err := autoDtype(chans)
	if err != nil {
		return nil, err
	}
	return fromImage(f, part, d, chans)
}

// FromImageDtype decodes like FromImage but pins the element type,
// failing when a channel cannot be carried by it.
func FromImageDtype(f *exr.File, part int, dtype Dtype, channels ...string) (*Array, error) {
	chans, err := selectChannels(f.Header(part), channels)
	if err != nil {
		return nil, err
	}
	for _, ch := range chans {
		if !dtype.carries(ch.Type) {
			return nil, fmt.Errorf("%w: %s array cannot carry %s channel %q",
				exr.ErrDtypeMismatch, dtype, ch.Type, ch.Name)
		}
	}
	return fromImage(f, part, dtype, chans)
}

func fromImage(f *exr.File, part int, dtype Dtype, chans []exr.Channel) (*Array, error) {
	img, err := exr.DecodeImagePart(f, part)
	if err != nil {
		return nil, err
	}
	win := img.Window()
	names := make([]string, len(chans))
	for i, ch := range chans {
		names[i] = ch.Name
	}
	a, err := New(dtype, win.Height(), win.Width(), names)
	if err != nil {
		return nil, err
	}
	minX, minY := int(win.Min.X), int(win.Min.Y)
	for c, ch := range chans {
		s := img.Slice(ch.Name)
		if dtype == Uint32 {
			for y := 0; y < a.height; y++ {
				for x := 0; x < a.width; x++ {
					a.SetUint(y, x, c, s.Uint(minX+x, minY+y))
				}
			}
			continue
		}
		for y := 0; y < a.height; y++ {
			for x := 0; x < a.width; x++ {
				a.SetFloat(y, x, c, s.Float(minX+x, minY+y))
			}
		}
	}
	return a, nil
}

// ToImage scatters the array into an image for h's data window. The
// array's shape must match the window and its names must cover exactly
// h's channel list; order may differ, channel identity may not.
func (a *Array) ToImage(h *exr.Header) (*exr.Image, error) {
	dw := h.DataWindow()
	if a.height != dw.Height() || a.width != dw.Width() {
		return nil, fmt.Errorf("%w: array is (%d, %d), data window is (%d, %d)",
			exr.ErrShapeMismatch, a.height, a.width, dw.Height(), dw.Width())
	}
	cl := h.Channels()
	if cl.Len() != len(a.names) {
		return nil, fmt.Errorf("%w: array has %d channels, header declares %d",
			exr.ErrShapeMismatch, len(a.names), cl.Len())
	}
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		if a.Index(ch.Name) < 0 {
			return nil, fmt.Errorf("%w: header channel %q not in array", exr.ErrShapeMismatch, ch.Name)
		}
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return nil, fmt.Errorf("%w: channel %q is subsampled", exr.ErrShapeMismatch, ch.Name)
		}
		if !a.dtype.carries(ch.Type) && !(a.dtype == Float32 && ch.Type == exr.PixelTypeHalf) {
			return nil, fmt.Errorf("%w: %s array cannot write %s channel %q",
				exr.ErrDtypeMismatch, a.dtype, ch.Type, ch.Name)
		}
	}

	img := exr.NewImage(h)
	win := img.Window()
	minX, minY := int(win.Min.X), int(win.Min.Y)
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		c := a.Index(ch.Name)
		s := img.Slice(ch.Name)
		if a.dtype == Uint32 {
			for y := 0; y < a.height; y++ {
				for x := 0; x < a.width; x++ {
					s.SetUint(minX+x, minY+y, a.Uint(y, x, c))
				}
			}
			continue
		}
		for y := 0; y < a.height; y++ {
			for x := 0; x < a.width; x++ {
				s.SetFloat(minX+x, minY+y, a.Float(y, x, c))
			}
		}
	}
	return img, nil
}

// Write encodes the array as a single-part file with h's layout and
// compression.
func (a *Array) Write(w io.WriteSeeker, h *exr.Header) error {
	img, err := a.ToImage(h)
	if err != nil {
		return err
	}
	return exr.EncodeImage(w, img)
}
