package compression

import "fmt"

// PXR24 stores FLOAT channels as 24-bit floats (sign, exponent, top 15
// mantissa bits), HALF and UINT channels unchanged. Each scanline is laid
// out as per-channel byte planes, most significant plane first, with a
// running difference along each plane row, and the whole block goes
// through deflate. FLOAT data is lossy (low 8 mantissa bits dropped); HALF
// and UINT round-trip exactly.

// toFloat24 rounds a float32 bit pattern to the 24-bit representation.
func toFloat24(bits uint32) uint32 {
	s := bits & 0x80000000
	e := bits & 0x7F800000
	m := bits & 0x007FFFFF

	if e == 0x7F800000 {
		if m != 0 {
			// NaN: keep the top mantissa bits, never collapse to Inf.
			m >>= 8
			v := e>>8 | m
			if m == 0 {
				v |= 1
			}
			return s>>8 | v
		}
		return s>>8 | e>>8
	}

	v := ((e | m) + (m & 0x00000080)) >> 8
	if v >= 0x7F8000 {
		// Rounding overflowed into the Inf range; truncate instead.
		v = (e | m) >> 8
	}
	return s>>8 | v
}

// fromFloat24 expands a 24-bit value back to float32 bits.
func fromFloat24(v uint32) uint32 {
	return v << 8
}

type pxr24Codec struct{}

func init() { register(pxr24Codec{}) }

func (pxr24Codec) ID() int            { return IDPXR24 }
func (pxr24Codec) LinesPerChunk() int { return 16 }
func (pxr24Codec) Lossless() bool     { return false }

// packedSize returns the byte count of the plane representation.
func (pxr24Codec) packedSize(shape ChunkShape) int {
	n := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			w := shape.RowSamples(ch)
			switch ch.Type {
			case SampleUint:
				n += w * 4
			case SampleHalf:
				n += w * 2
			default:
				n += w * 3
			}
		}
	}
	return n
}

func (c pxr24Codec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	scratch := make([]byte, c.packedSize(shape))
	in, out := 0, 0

	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			w := shape.RowSamples(ch)
			switch ch.Type {
			case SampleUint:
				p0, p1, p2, p3 := out, out+w, out+2*w, out+3*w
				out += 4 * w
				var prev uint32
				for x := 0; x < w; x++ {
					v := uint32(src[in]) | uint32(src[in+1])<<8 |
						uint32(src[in+2])<<16 | uint32(src[in+3])<<24
					in += 4
					d := v - prev
					prev = v
					scratch[p0+x] = byte(d >> 24)
					scratch[p1+x] = byte(d >> 16)
					scratch[p2+x] = byte(d >> 8)
					scratch[p3+x] = byte(d)
				}
			case SampleHalf:
				p0, p1 := out, out+w
				out += 2 * w
				var prev uint32
				for x := 0; x < w; x++ {
					v := uint32(src[in]) | uint32(src[in+1])<<8
					in += 2
					d := v - prev
					prev = v
					scratch[p0+x] = byte(d >> 8)
					scratch[p1+x] = byte(d)
				}
			default:
				p0, p1, p2 := out, out+w, out+2*w
				out += 3 * w
				var prev uint32
				for x := 0; x < w; x++ {
					bits := uint32(src[in]) | uint32(src[in+1])<<8 |
						uint32(src[in+2])<<16 | uint32(src[in+3])<<24
					in += 4
					v := toFloat24(bits)
					d := v - prev
					prev = v
					scratch[p0+x] = byte(d >> 16)
					scratch[p1+x] = byte(d >> 8)
					scratch[p2+x] = byte(d)
				}
			}
		}
	}

	compressed, err := deflate(scratch[:out], shape.ZipLevel)
	if err != nil {
		return nil, fmt.Errorf("pxr24 compress: %w", err)
	}
	if len(compressed) >= len(src) {
		// Deflate grew the chunk; store the raw bytes instead.
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}
	return compressed, nil
}

func (c pxr24Codec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}

	scratch, err := inflate(src, c.packedSize(shape))
	if err != nil {
		if len(src) == rawSize {
			// The compressor's raw fallback.
			out := make([]byte, rawSize)
			copy(out, src)
			return out, nil
		}
		return nil, fmt.Errorf("pxr24 decompress: %w", err)
	}

	dst := make([]byte, rawSize)
	in, out := 0, 0

	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			w := shape.RowSamples(ch)
			switch ch.Type {
			case SampleUint:
				p0, p1, p2, p3 := in, in+w, in+2*w, in+3*w
				in += 4 * w
				var v uint32
				for x := 0; x < w; x++ {
					v += uint32(scratch[p0+x])<<24 | uint32(scratch[p1+x])<<16 |
						uint32(scratch[p2+x])<<8 | uint32(scratch[p3+x])
					dst[out] = byte(v)
					dst[out+1] = byte(v >> 8)
					dst[out+2] = byte(v >> 16)
					dst[out+3] = byte(v >> 24)
					out += 4
				}
			case SampleHalf:
				p0, p1 := in, in+w
				in += 2 * w
				var v uint32
				for x := 0; x < w; x++ {
					v += uint32(scratch[p0+x])<<8 | uint32(scratch[p1+x])
					dst[out] = byte(v)
					dst[out+1] = byte(v >> 8)
					out += 2
				}
			default:
				p0, p1, p2 := in, in+w, in+2*w
				in += 3 * w
				var v uint32
				for x := 0; x < w; x++ {
					v += uint32(scratch[p0+x])<<16 | uint32(scratch[p1+x])<<8 |
						uint32(scratch[p2+x])
					bits := fromFloat24(v)
					dst[out] = byte(bits)
					dst[out+1] = byte(bits >> 8)
					dst[out+2] = byte(bits >> 16)
					dst[out+3] = byte(bits >> 24)
					out += 4
				}
			}
		}
	}
	return dst, nil
}
