package compression

import (
	"fmt"
	"math"
	"sync"

	"github.com/patrickhulce/exrio/half"
)

// B44 packs each 4x4 block of a HALF channel into 14 bytes: the first
// pixel as a base value, a shift amount, and fourteen 6-bit running
// differences through the block. B44A additionally collapses blocks whose
// pixels are all equal to 3 bytes. UINT and FLOAT channels are stored
// uncompressed, each channel's plane contiguous. Both variants are lossy
// for HALF data with bounded error; edge blocks are padded by repeating
// the boundary pixels.

// ordered converts a half bit pattern to a monotonically ordered unsigned
// value so differences behave; Inf and NaN collapse to ordered zero.
func ordered(v uint16) uint16 {
	if v&0x7C00 == 0x7C00 {
		return 0x8000
	}
	if v&0x8000 != 0 {
		return ^v
	}
	return v | 0x8000
}

// unordered inverts ordered for finite results.
func unordered(v uint16) uint16 {
	if v&0x8000 != 0 {
		return v & 0x7FFF
	}
	return ^v
}

// shiftAndRound drops shift bits off x, rounding to nearest with ties
// away from the dropped half.
func shiftAndRound(x, shift int) int {
	x <<= 1
	a := 1<<shift - 1
	shift++
	b := x >> shift & 1
	return (x + a + b) >> shift
}

// packBlock packs the 16 ordered values of one block into b, returning the
// packed size: 3 for a flat block (when allowed), else 14. When exactMax
// is set the base value is adjusted so the block maximum reconstructs
// exactly.
func packBlock(s *[16]uint16, b []byte, flatAllowed, exactMax bool) int {
	tMax := s[0]
	for _, v := range s[1:] {
		if v > tMax {
			tMax = v
		}
	}

	const bias = 0x20
	var d [16]int
	var r [15]int
	shift := -1
	rMin, rMax := 0, 0

	for {
		shift++
		for i, v := range s {
			d[i] = shiftAndRound(int(tMax)-int(v), shift)
		}

		r[0] = d[0] - d[4] + bias
		r[1] = d[4] - d[8] + bias
		r[2] = d[8] - d[12] + bias
		r[3] = d[0] - d[1] + bias
		r[4] = d[4] - d[5] + bias
		r[5] = d[8] - d[9] + bias
		r[6] = d[12] - d[13] + bias
		r[7] = d[1] - d[2] + bias
		r[8] = d[5] - d[6] + bias
		r[9] = d[9] - d[10] + bias
		r[10] = d[13] - d[14] + bias
		r[11] = d[2] - d[3] + bias
		r[12] = d[6] - d[7] + bias
		r[13] = d[10] - d[11] + bias
		r[14] = d[14] - d[15] + bias

		rMin, rMax = r[0], r[0]
		for _, v := range r[1:] {
			if v < rMin {
				rMin = v
			}
			if v > rMax {
				rMax = v
			}
		}
		if rMin >= 0 && rMax <= 0x3F {
			break
		}
	}

	if flatAllowed && rMin == bias && rMax == bias {
		b[0] = byte(s[0] >> 8)
		b[1] = byte(s[0])
		b[2] = 0xFC
		return 3
	}

	t0 := s[0]
	if exactMax {
		t0 = tMax - uint16(d[0]<<shift)
	}

	b[0] = byte(t0 >> 8)
	b[1] = byte(t0)
	b[2] = byte(shift<<2 | r[0]>>4)
	b[3] = byte(r[0]<<4 | r[1]>>2)
	b[4] = byte(r[1]<<6 | r[2])
	b[5] = byte(r[3]<<2 | r[4]>>4)
	b[6] = byte(r[4]<<4 | r[5]>>2)
	b[7] = byte(r[5]<<6 | r[6])
	b[8] = byte(r[7]<<2 | r[8]>>4)
	b[9] = byte(r[8]<<4 | r[9]>>2)
	b[10] = byte(r[9]<<6 | r[10])
	b[11] = byte(r[11]<<2 | r[12]>>4)
	b[12] = byte(r[12]<<4 | r[13]>>2)
	b[13] = byte(r[13]<<6 | r[14])
	return 14
}

// unpackBlock14 expands a 14-byte block into 16 ordered values.
func unpackBlock14(b []byte, s *[16]uint16) {
	s[0] = uint16(b[0])<<8 | uint16(b[1])

	shift := uint(b[2] >> 2)
	bias := uint16(0x20) << shift

	diff := func(hi, lo byte, hiShift, loShift uint) uint16 {
		return uint16((uint32(hi)<<hiShift|uint32(lo)>>loShift)&0x3F) << shift
	}

	s[4] = s[0] + diff(b[2], b[3], 4, 4) - bias
	s[8] = s[4] + diff(b[3], b[4], 2, 6) - bias
	s[12] = s[8] + uint16(uint32(b[4])&0x3F)<<shift - bias

	s[1] = s[0] + uint16(uint32(b[5])>>2)<<shift - bias
	s[5] = s[4] + diff(b[5], b[6], 4, 4) - bias
	s[9] = s[8] + diff(b[6], b[7], 2, 6) - bias
	s[13] = s[12] + uint16(uint32(b[7])&0x3F)<<shift - bias

	s[2] = s[1] + uint16(uint32(b[8])>>2)<<shift - bias
	s[6] = s[5] + diff(b[8], b[9], 4, 4) - bias
	s[10] = s[9] + diff(b[9], b[10], 2, 6) - bias
	s[14] = s[13] + uint16(uint32(b[10])&0x3F)<<shift - bias

	s[3] = s[2] + uint16(uint32(b[11])>>2)<<shift - bias
	s[7] = s[6] + diff(b[11], b[12], 4, 4) - bias
	s[11] = s[10] + diff(b[12], b[13], 2, 6) - bias
	s[15] = s[14] + uint16(uint32(b[13])&0x3F)<<shift - bias
}

// unpackBlock3 expands a flat block.
func unpackBlock3(b []byte, s *[16]uint16) {
	v := uint16(b[0])<<8 | uint16(b[1])
	for i := range s {
		s[i] = v
	}
}

// Perceptually-linear channels go through an exp/log pair before packing
// so quantization error lands evenly in log space.
var (
	b44ExpTable [1 << 16]uint16
	b44LogTable [1 << 16]uint16
	b44Tables   sync.Once
)

func initB44Tables() {
	b44Tables.Do(func() {
		for i := 0; i < 1<<16; i++ {
			b44ExpTable[i] = b44FromLinear(uint16(i))
			b44LogTable[i] = b44ToLinear(uint16(i))
		}
	})
}

func b44FromLinear(x uint16) uint16 {
	if x&0x7C00 == 0x7C00 {
		return 0
	}
	if x >= 0x558C && x < 0x8000 {
		// exp(v/8) would overflow half range
		return 0x7BFF
	}
	f := half.FromBits(x).Float64()
	return half.FromFloat64(math.Exp(f / 8)).Bits()
}

func b44ToLinear(x uint16) uint16 {
	if x&0x7C00 == 0x7C00 || x > 0x8000 {
		return 0
	}
	f := half.FromBits(x).Float64()
	if f <= 0 {
		return 0
	}
	return half.FromFloat64(8 * math.Log(f)).Bits()
}

// b44Codec implements B44 and, with flat-block folding, B44A.
type b44Codec struct {
	id   int
	flat bool
}

func init() {
	register(b44Codec{id: IDB44})
	register(b44Codec{id: IDB44A, flat: true})
}

func (c b44Codec) ID() int          { return c.id }
func (b44Codec) LinesPerChunk() int { return 32 }
func (b44Codec) Lossless() bool     { return false }

// channelGeometry mirrors pizLayout for the staged per-channel planes.
func (b44Codec) channelGeometry(shape ChunkShape) []pizChannel {
	chans, _ := pizLayout(shape)
	return chans
}

func (c b44Codec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	initB44Tables()

	chans := c.channelGeometry(shape)

	// Stage every channel contiguously; HALF planes as uint16, the rest
	// as raw bytes.
	halves := make([][]uint16, len(chans))
	raws := make([][]byte, len(chans))
	for i, ch := range shape.Channels {
		g := chans[i]
		if ch.Type == SampleHalf {
			halves[i] = make([]uint16, g.nx*g.ny)
		} else {
			raws[i] = make([]byte, g.nx*g.ny*4)
		}
	}

	row := make([]int, len(chans))
	in := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for i, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			g := chans[i]
			if ch.Type == SampleHalf {
				base := row[i] * g.nx
				for x := 0; x < g.nx; x++ {
					halves[i][base+x] = uint16(src[in]) | uint16(src[in+1])<<8
					in += 2
				}
			} else {
				n := g.nx * 4
				copy(raws[i][row[i]*n:], src[in:in+n])
				in += n
			}
			row[i]++
		}
	}

	out := make([]byte, 0, len(src))
	var block [14]byte
	var s [16]uint16

	for i, ch := range shape.Channels {
		g := chans[i]
		if ch.Type != SampleHalf {
			out = append(out, raws[i]...)
			continue
		}

		cd := halves[i]
		for y := 0; y < g.ny; y += 4 {
			for x := 0; x < g.nx; x += 4 {
				for by := 0; by < 4; by++ {
					sy := y + by
					if sy >= g.ny {
						sy = g.ny - 1
					}
					for bx := 0; bx < 4; bx++ {
						sx := x + bx
						if sx >= g.nx {
							sx = g.nx - 1
						}
						s[by*4+bx] = ordered(cd[sy*g.nx+sx])
					}
				}
				if ch.Linear {
					for k := range s {
						s[k] = b44ExpTable[unordered(s[k])]
						s[k] = ordered(s[k])
					}
				}
				n := packBlock(&s, block[:], c.flat, !ch.Linear)
				out = append(out, block[:n]...)
			}
		}
	}
	return out, nil
}

func (c b44Codec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}
	initB44Tables()

	chans := c.channelGeometry(shape)

	halves := make([][]uint16, len(chans))
	raws := make([][]byte, len(chans))
	in := 0
	var s [16]uint16

	for i, ch := range shape.Channels {
		g := chans[i]
		if ch.Type != SampleHalf {
			n := g.nx * g.ny * 4
			if in+n > len(src) {
				return nil, fmt.Errorf("%w: b44 chunk truncated in %s plane", ErrMalformed, ch.Name)
			}
			raws[i] = src[in : in+n]
			in += n
			continue
		}

		cd := make([]uint16, g.nx*g.ny)
		halves[i] = cd
		for y := 0; y < g.ny; y += 4 {
			for x := 0; x < g.nx; x += 4 {
				if in+3 > len(src) {
					return nil, fmt.Errorf("%w: b44 chunk ends mid-block", ErrMalformed)
				}
				if src[in+2] >= 13<<2 {
					unpackBlock3(src[in:], &s)
					in += 3
				} else {
					if in+14 > len(src) {
						return nil, fmt.Errorf("%w: b44 chunk ends mid-block", ErrMalformed)
					}
					unpackBlock14(src[in:], &s)
					in += 14
				}
				for k := range s {
					s[k] = unordered(s[k])
				}
				if ch.Linear {
					for k := range s {
						s[k] = b44LogTable[s[k]]
					}
				}
				for by := 0; by < 4 && y+by < g.ny; by++ {
					for bx := 0; bx < 4 && x+bx < g.nx; bx++ {
						cd[(y+by)*g.nx+x+bx] = s[by*4+bx]
					}
				}
			}
		}
	}

	dst := make([]byte, rawSize)
	row := make([]int, len(chans))
	out := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for i, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			g := chans[i]
			if ch.Type == SampleHalf {
				base := row[i] * g.nx
				for x := 0; x < g.nx; x++ {
					v := halves[i][base+x]
					dst[out] = byte(v)
					dst[out+1] = byte(v >> 8)
					out += 2
				}
			} else {
				n := g.nx * 4
				copy(dst[out:], raws[i][row[i]*n:row[i]*n+n])
				out += n
			}
			row[i]++
		}
	}
	return dst, nil
}
