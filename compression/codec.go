// Package compression implements the OpenEXR chunk codec family. Each
// scheme compresses or decompresses the raw byte image of one chunk (a
// scanline block or a tile) and is reached through the Codec interface so
// the container layer stays independent of individual schemes.
package compression

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when compressed chunk data is internally
	// inconsistent: short streams, runs past the declared raw size,
	// corrupt entropy tables, or an inflate size mismatch.
	ErrMalformed = errors.New("compression: malformed chunk data")

	// ErrUnknownScheme is returned for a compression id this engine does
	// not implement.
	ErrUnknownScheme = errors.New("compression: unknown compression scheme")
)

// SampleType identifies the storage type of one channel's samples,
// numbered as in the channel list wire format.
type SampleType int

const (
	// SampleUint is a 32-bit unsigned integer sample.
	SampleUint SampleType = 0
	// SampleHalf is a 16-bit IEEE 754 binary16 sample.
	SampleHalf SampleType = 1
	// SampleFloat is a 32-bit IEEE 754 binary32 sample.
	SampleFloat SampleType = 2
)

// Size returns the sample size in bytes.
func (t SampleType) Size() int {
	if t == SampleHalf {
		return 2
	}
	return 4
}

// ChannelDesc describes one channel of a chunk as the codecs need it:
// name (schemes that classify channels key on it), sample type, sampling
// rates and the perceptual-linearity hint the lossy schemes honor.
type ChannelDesc struct {
	Name      string
	Type      SampleType
	XSampling int
	YSampling int
	Linear    bool
}

// ChunkShape carries the geometry a codec needs to interpret one chunk's
// raw bytes: the chunk's absolute position and extent within the data
// window, the channel layout in channel-list order, and the tunables of
// the configurable schemes.
type ChunkShape struct {
	MinX, MinY    int
	Width, Height int
	Channels      []ChannelDesc

	// ZipLevel is the deflate level for the zlib-backed schemes,
	// -1 for the default.
	ZipLevel int

	// DWALevel is the DWA quantization level; zero means the default.
	DWALevel float32
}

// floorDiv divides rounding toward negative infinity, matching the
// sampling arithmetic of the format.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// sampleCount returns how many sample positions fall in [min, max] for a
// given sampling rate.
func sampleCount(sampling, min, max int) int {
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

// RowSamples returns the number of samples channel ch contributes to one
// row of this chunk.
func (s ChunkShape) RowSamples(ch ChannelDesc) int {
	return sampleCount(ch.XSampling, s.MinX, s.MinX+s.Width-1)
}

// RowPresent reports whether channel ch has samples on absolute row y.
func (s ChunkShape) RowPresent(ch ChannelDesc, y int) bool {
	if ch.YSampling <= 1 {
		return true
	}
	return floorDiv(y, ch.YSampling)*ch.YSampling == y
}

// BytesForRow returns the raw byte count of absolute row y across all
// channels.
func (s ChunkShape) BytesForRow(y int) int {
	n := 0
	for _, ch := range s.Channels {
		if s.RowPresent(ch, y) {
			n += s.RowSamples(ch) * ch.Type.Size()
		}
	}
	return n
}

// RawSize returns the uncompressed byte count of the whole chunk.
func (s ChunkShape) RawSize() int {
	n := 0
	for y := s.MinY; y < s.MinY+s.Height; y++ {
		n += s.BytesForRow(y)
	}
	return n
}

// Codec is the uniform strategy contract every compression scheme
// implements. Compress may return src itself when the scheme stores raw
// bytes; Decompress must produce exactly shape.RawSize() bytes or fail
// with ErrMalformed. Lossless schemes round-trip bit for bit; the lossy
// ones guarantee only that their own output decodes.
type Codec interface {
	// ID returns the scheme's compression id as stored in the header.
	ID() int

	// LinesPerChunk returns the scanline block height of the scheme.
	LinesPerChunk() int

	// Lossless reports whether the scheme preserves samples exactly.
	Lossless() bool

	Compress(src []byte, shape ChunkShape) ([]byte, error)
	Decompress(src []byte, shape ChunkShape) ([]byte, error)
}

// Compression ids as stored in the header's compression attribute.
const (
	IDNone     = 0
	IDRLE      = 1
	IDZIPS     = 2
	IDZIP      = 3
	IDPIZ      = 4
	IDPXR24    = 5
	IDB44      = 6
	IDB44A     = 7
	IDDWAA     = 8
	IDDWAB     = 9
	IDHTJ2K256 = 10
	IDHTJ2K32  = 11
)

var registry = map[int]Codec{}

// register installs a codec under its id. Called from each scheme's init;
// the set of schemes is closed at build time.
func register(c Codec) {
	registry[c.ID()] = c
}

// ForID returns the codec for a compression id.
func ForID(id int) (Codec, error) {
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownScheme, id)
	}
	return c, nil
}

// Known reports whether a compression id belongs to an implemented scheme.
func Known(id int) bool {
	_, ok := registry[id]
	return ok
}

// noneCodec stores chunk bytes verbatim.
type noneCodec struct{}

func init() { register(noneCodec{}) }

func (noneCodec) ID() int            { return IDNone }
func (noneCodec) LinesPerChunk() int { return 1 }
func (noneCodec) Lossless() bool     { return true }

func (noneCodec) Compress(src []byte, _ ChunkShape) ([]byte, error) {
	return src, nil
}

func (noneCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) != shape.RawSize() {
		return nil, fmt.Errorf("%w: stored chunk is %d bytes, want %d",
			ErrMalformed, len(src), shape.RawSize())
	}
	return src, nil
}
