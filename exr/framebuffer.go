package exr

import (
	"encoding/binary"
	"math"

	"github.com/patrickhulce/exrio/half"
)

// Slice describes one channel's destination (read) or source (write)
// buffer. Data is addressed per sample as
//
//	Origin + floorDiv(x, XSampling)*XStride + floorDiv(y, YSampling)*YStride
//
// with x and y in absolute data-window coordinates and all strides in
// bytes. Samples are little-endian in Data.
type Slice struct {
	Type PixelType
	Data []byte

	// Origin is the byte offset of the sample at coordinate (0, 0). For
	// windows that do not contain the origin it is the extrapolated value
	// and may point outside Data; only addresses of samples inside the
	// window are ever dereferenced.
	Origin           int
	XStride, YStride int

	XSampling, YSampling int

	// Fill is the value substituted when a file lacks this channel.
	Fill float64
}

// NewSlice returns a dense slice over win for samples of type t, allocating
// the backing buffer.
func NewSlice(t PixelType, win Box2i) *Slice {
	return NewSampledSlice(t, win, 1, 1)
}

// NewSampledSlice returns a dense slice over win for a channel subsampled
// by (xs, ys). The buffer holds one sample per sampled position.
func NewSampledSlice(t PixelType, win Box2i, xs, ys int) *Slice {
	if xs < 1 {
		xs = 1
	}
	if ys < 1 {
		ys = 1
	}
	w := sampledCount(int(win.Min.X), int(win.Max.X), xs)
	h := sampledCount(int(win.Min.Y), int(win.Max.Y), ys)
	size := t.Size()
	s := &Slice{
		Type:      t,
		Data:      make([]byte, w*h*size),
		XStride:   size,
		YStride:   w * size,
		XSampling: xs,
		YSampling: ys,
	}
	s.Origin = -(floorDiv(int(win.Min.Y), ys)*s.YStride + floorDiv(int(win.Min.X), xs)*s.XStride)
	return s
}

// WrapSlice returns a slice over caller-owned data laid out densely over
// win with unit sampling.
func WrapSlice(t PixelType, data []byte, win Box2i) *Slice {
	size := t.Size()
	s := &Slice{
		Type:      t,
		Data:      data,
		XStride:   size,
		YStride:   win.Width() * size,
		XSampling: 1,
		YSampling: 1,
	}
	s.Origin = -(int(win.Min.Y)*s.YStride + int(win.Min.X)*s.XStride)
	return s
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// sampledCount returns the number of sampled positions in [min, max].
func sampledCount(min, max, sampling int) int {
	if max < min {
		return 0
	}
	if sampling <= 1 {
		return max - min + 1
	}
	n := floorDiv(max, sampling) - floorDiv(min, sampling) + 1
	if floorDiv(min, sampling)*sampling < min {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// firstSample returns the smallest x >= min that is a sampled position.
func firstSample(min, sampling int) int {
	if sampling <= 1 {
		return min
	}
	f := floorDiv(min, sampling) * sampling
	if f < min {
		f += sampling
	}
	return f
}

func (s *Slice) offset(x, y int) int {
	return s.Origin + floorDiv(x, s.XSampling)*s.XStride + floorDiv(y, s.YSampling)*s.YStride
}

// storeRow copies count samples from src (packed little-endian) into the
// slice positions for row y starting at the first sampled x >= minX.
func (s *Slice) storeRow(y, minX, count int, src []byte) {
	size := s.Type.Size()
	x := firstSample(minX, s.XSampling)
	if s.XStride == size {
		copy(s.Data[s.offset(x, y):], src[:count*size])
		return
	}
	for i := 0; i < count; i++ {
		off := s.offset(x+i*s.XSampling, y)
		copy(s.Data[off:off+size], src[i*size:])
	}
}

// loadRow copies count samples for row y starting at the first sampled
// x >= minX into dst, packed little-endian.
func (s *Slice) loadRow(y, minX, count int, dst []byte) {
	size := s.Type.Size()
	x := firstSample(minX, s.XSampling)
	if s.XStride == size {
		copy(dst[:count*size], s.Data[s.offset(x, y):])
		return
	}
	for i := 0; i < count; i++ {
		off := s.offset(x+i*s.XSampling, y)
		copy(dst[i*size:(i+1)*size], s.Data[off:])
	}
}

// fillRow writes the slice's fill value into count samples of row y.
func (s *Slice) fillRow(y, minX, count int) {
	size := s.Type.Size()
	var sample [4]byte
	switch s.Type {
	case PixelTypeHalf:
		binary.LittleEndian.PutUint16(sample[:2], uint16(half.FromFloat32(float32(s.Fill))))
	case PixelTypeFloat:
		binary.LittleEndian.PutUint32(sample[:4], math.Float32bits(float32(s.Fill)))
	case PixelTypeUint:
		binary.LittleEndian.PutUint32(sample[:4], uint32(s.Fill))
	}
	x := firstSample(minX, s.XSampling)
	for i := 0; i < count; i++ {
		off := s.offset(x+i*s.XSampling, y)
		copy(s.Data[off:off+size], sample[:size])
	}
}

// SetFloat stores v at (x, y), converting to the slice's sample type.
func (s *Slice) SetFloat(x, y int, v float32) {
	off := s.offset(x, y)
	switch s.Type {
	case PixelTypeHalf:
		binary.LittleEndian.PutUint16(s.Data[off:], uint16(half.FromFloat32(v)))
	case PixelTypeFloat:
		binary.LittleEndian.PutUint32(s.Data[off:], math.Float32bits(v))
	case PixelTypeUint:
		binary.LittleEndian.PutUint32(s.Data[off:], uint32(v))
	}
}

// Float returns the sample at (x, y) widened to float32.
func (s *Slice) Float(x, y int) float32 {
	off := s.offset(x, y)
	switch s.Type {
	case PixelTypeHalf:
		return half.Half(binary.LittleEndian.Uint16(s.Data[off:])).Float32()
	case PixelTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off:]))
	case PixelTypeUint:
		return float32(binary.LittleEndian.Uint32(s.Data[off:]))
	}
	return 0
}

// SetUint stores v at (x, y) in a uint slice.
func (s *Slice) SetUint(x, y int, v uint32) {
	binary.LittleEndian.PutUint32(s.Data[s.offset(x, y):], v)
}

// Uint returns the sample at (x, y) of a uint slice.
func (s *Slice) Uint(x, y int) uint32 {
	return binary.LittleEndian.Uint32(s.Data[s.offset(x, y):])
}

// FrameBuffer maps channel names to their pixel slices for a read or write
// operation. Channels present in the file but absent here are skipped on
// read; channels present here but absent in the file are filled with their
// slice's Fill value.
type FrameBuffer struct {
	slices map[string]*Slice
	names  []string
}

// NewFrameBuffer returns an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{slices: map[string]*Slice{}}
}

// Insert registers a slice for a channel name, replacing any previous one.
func (fb *FrameBuffer) Insert(name string, s *Slice) {
	if _, ok := fb.slices[name]; !ok {
		fb.names = append(fb.names, name)
	}
	fb.slices[name] = s
}

// Get returns the slice for a channel name, or nil.
func (fb *FrameBuffer) Get(name string) *Slice {
	if fb == nil {
		return nil
	}
	return fb.slices[name]
}

// Names returns the registered channel names in insertion order.
func (fb *FrameBuffer) Names() []string {
	return fb.names
}
