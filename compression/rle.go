package compression

import "fmt"

// Run-length limits of the wire format. A signed count byte introduces each
// group: -n repeats the following byte n+1 times, +n copies the following
// n+1 bytes verbatim.
const (
	rleMinRun = 3
	rleMaxRun = 127
)

// rleEncode packs src with the format's byte-oriented run-length scheme.
func rleEncode(src []byte) []byte {
	dst := make([]byte, 0, len(src)+len(src)/rleMaxRun+1)
	i := 0
	for i < len(src) {
		v := src[i]
		run := i + 1
		for run < len(src) && src[run] == v && run-i < rleMaxRun {
			run++
		}
		if run-i >= rleMinRun {
			dst = append(dst, byte(-(int8(run - i - 1))), v)
			i = run
			continue
		}

		lit := i
		for i < len(src) && i-lit < rleMaxRun+1 {
			if i+rleMinRun <= len(src) && src[i+1] == src[i] && src[i+2] == src[i] {
				break
			}
			i++
		}
		dst = append(dst, byte(i-lit-1))
		dst = append(dst, src[lit:i]...)
	}
	return dst
}

// rleDecode unpacks src into exactly len(dst) bytes. Runs or literals that
// would overflow dst, or a stream that ends early or short, fail with
// ErrMalformed.
func rleDecode(src, dst []byte) error {
	out := 0
	i := 0
	for i < len(src) {
		n := int(int8(src[i]))
		i++
		if n < 0 {
			run := -n + 1
			if i >= len(src) {
				return fmt.Errorf("%w: rle run missing value byte", ErrMalformed)
			}
			if out+run > len(dst) {
				return fmt.Errorf("%w: rle run overflows raw size", ErrMalformed)
			}
			v := src[i]
			i++
			for j := 0; j < run; j++ {
				dst[out+j] = v
			}
			out += run
		} else {
			lit := n + 1
			if i+lit > len(src) {
				return fmt.Errorf("%w: rle literal past end of stream", ErrMalformed)
			}
			if out+lit > len(dst) {
				return fmt.Errorf("%w: rle literal overflows raw size", ErrMalformed)
			}
			copy(dst[out:], src[i:i+lit])
			i += lit
			out += lit
		}
	}
	if out != len(dst) {
		return fmt.Errorf("%w: rle stream yields %d bytes, want %d", ErrMalformed, out, len(dst))
	}
	return nil
}

// rleCodec is the RLE scheme: the same split/predict preconditioning as the
// zlib family, with the run-length stage instead of deflate.
type rleCodec struct{}

func init() { register(rleCodec{}) }

func (rleCodec) ID() int            { return IDRLE }
func (rleCodec) LinesPerChunk() int { return 1 }
func (rleCodec) Lossless() bool     { return true }

func (rleCodec) Compress(src []byte, _ ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	tmp := make([]byte, len(src))
	splitBytes(tmp, src)
	deltaEncode(tmp)
	return rleEncode(tmp), nil
}

func (rleCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}
	tmp := make([]byte, rawSize)
	if err := rleDecode(src, tmp); err != nil {
		return nil, err
	}
	deltaDecode(tmp)
	dst := make([]byte, rawSize)
	mergeBytes(dst, tmp)
	return dst, nil
}
