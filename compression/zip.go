package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// The zlib-family schemes precondition the chunk bytes before deflate:
// the buffer is split into even and odd byte streams, then each byte is
// replaced by its difference from the previous one, centered at 128.
// Both passes are exactly invertible and leave deflate with long
// low-entropy runs for typical pixel data.

// splitBytes writes src's even-indexed bytes to the first half of dst and
// the odd-indexed bytes to the second half.
func splitBytes(dst, src []byte) {
	half := (len(src) + 1) / 2
	j, k := 0, half
	for i := 0; i < len(src); i++ {
		if i&1 == 0 {
			dst[j] = src[i]
			j++
		} else {
			dst[k] = src[i]
			k++
		}
	}
}

// mergeBytes undoes splitBytes.
func mergeBytes(dst, src []byte) {
	half := (len(src) + 1) / 2
	j, k := 0, half
	for i := 0; i < len(dst); i++ {
		if i&1 == 0 {
			dst[i] = src[j]
			j++
		} else {
			dst[i] = src[k]
			k++
		}
	}
}

// deltaEncode replaces each byte after the first with its difference from
// the previous original byte, offset by 128.
func deltaEncode(data []byte) {
	if len(data) < 2 {
		return
	}
	prev := int(data[0])
	for i := 1; i < len(data); i++ {
		cur := int(data[i])
		data[i] = byte(cur - prev + (128 + 256))
		prev = cur
	}
}

// deltaDecode undoes deltaEncode; each byte depends on the already-decoded
// predecessor.
func deltaDecode(data []byte) {
	for i := 1; i < len(data); i++ {
		data[i] = byte(int(data[i-1]) + int(data[i]) - 128)
	}
}

// DefaultZlibLevel is used when ChunkShape.ZipLevel is zero on compress.
const DefaultZlibLevel = zlib.DefaultCompression

// DetectZlibLevel reads the FLEVEL category out of a zlib stream header and
// maps it to a representative deflate level, so a rewritten file keeps the
// producer's level category. Returns false for data that is not a zlib
// stream.
func DetectZlibLevel(data []byte) (int, bool) {
	if len(data) < 2 {
		return 0, false
	}
	cmf, flg := data[0], data[1]
	if cmf&0x0F != 8 {
		return 0, false
	}
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return 0, false
	}
	switch flg >> 6 & 0x03 {
	case 0:
		return zlib.BestSpeed, true
	case 1:
		return 4, true
	case 2:
		return zlib.DefaultCompression, true
	default:
		return zlib.BestCompression, true
	}
}

type zlibEncoder struct {
	w   *zlib.Writer
	buf bytes.Buffer
}

// Pool for the default-level writers; other levels allocate per call.
var zlibEncoderPool = sync.Pool{
	New: func() any {
		e := &zlibEncoder{}
		e.w, _ = zlib.NewWriterLevel(&e.buf, zlib.DefaultCompression)
		return e
	},
}

// deflate compresses src at the given level (0 means the default).
func deflate(src []byte, level int) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if level == 0 {
		level = zlib.DefaultCompression
	}

	if level == zlib.DefaultCompression {
		e := zlibEncoderPool.Get().(*zlibEncoder)
		defer zlibEncoderPool.Put(e)
		e.buf.Reset()
		e.w.Reset(&e.buf)
		if _, err := e.w.Write(src); err != nil {
			return nil, err
		}
		if err := e.w.Close(); err != nil {
			return nil, err
		}
		out := make([]byte, e.buf.Len())
		copy(out, e.buf.Bytes())
		return out, nil
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type zlibDecoder struct {
	r   io.ReadCloser
	src *bytes.Reader
}

var zlibDecoderPool = sync.Pool{
	New: func() any {
		return &zlibDecoder{src: bytes.NewReader(nil)}
	},
}

// inflate decompresses src, which must yield exactly rawSize bytes.
func inflate(src []byte, rawSize int) ([]byte, error) {
	if len(src) == 0 {
		if rawSize != 0 {
			return nil, fmt.Errorf("%w: empty deflate stream, want %d bytes", ErrMalformed, rawSize)
		}
		return nil, nil
	}

	d := zlibDecoderPool.Get().(*zlibDecoder)
	defer zlibDecoderPool.Put(d)
	d.src.Reset(src)

	if d.r == nil {
		r, err := zlib.NewReader(d.src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		d.r = r
	} else if err := d.r.(zlib.Resetter).Reset(d.src, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dst := make([]byte, rawSize)
	if _, err := io.ReadFull(d.r, dst); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrMalformed, err)
	}
	// The stream must end exactly at rawSize.
	var extra [1]byte
	if n, _ := d.r.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: inflate yields more than %d bytes", ErrMalformed, rawSize)
	}
	return dst, nil
}

// inflateAll decompresses src without a known output size.
func inflateAll(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrMalformed, err)
	}
	return out, nil
}

// zipCodec implements both zlib-family schemes; they differ only in block
// height.
type zipCodec struct {
	id    int
	lines int
}

func init() {
	register(zipCodec{id: IDZIPS, lines: 1})
	register(zipCodec{id: IDZIP, lines: 16})
}

func (c zipCodec) ID() int            { return c.id }
func (c zipCodec) LinesPerChunk() int { return c.lines }
func (zipCodec) Lossless() bool       { return true }

func (c zipCodec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	tmp := make([]byte, len(src))
	splitBytes(tmp, src)
	deltaEncode(tmp)
	out, err := deflate(tmp, shape.ZipLevel)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", c.name(), err)
	}
	return out, nil
}

func (c zipCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	tmp, err := inflate(src, rawSize)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", c.name(), err)
	}
	if rawSize == 0 {
		return nil, nil
	}
	deltaDecode(tmp)
	dst := make([]byte, rawSize)
	mergeBytes(dst, tmp)
	return dst, nil
}

func (c zipCodec) name() string {
	if c.id == IDZIPS {
		return "zips"
	}
	return "zip"
}
