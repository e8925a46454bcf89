package compression

import (
	"fmt"
	"math"
	"strings"

	"github.com/patrickhulce/exrio/half"
)

// DWA trades bounded error on HALF image channels for much smaller chunks.
// Channels are classified by name: color channels go through an 8x8 DCT
// with frequency-dependent quantization, alpha channels are run-length
// coded losslessly, and everything else is deflated verbatim. R/G/B
// triples in the same layer are rotated into Y'CbCr (Rec. 709) first so
// the quantizer spends its budget where the eye looks.
//
// Chunk layout: eight little-endian uint64 sizes, then the deflated
// unknown-channel stream, the Huffman-coded AC stream, the deflated DC
// stream, and the deflated RLE stream.

type dwaScheme int

const (
	dwaUnknown dwaScheme = iota
	dwaLossyDCT
	dwaRLE
)

// dwaClassify assigns a coding scheme from the channel's base name, the
// part after the last layer separator.
func dwaClassify(ch ChannelDesc) dwaScheme {
	if ch.Type != SampleHalf {
		return dwaUnknown
	}
	base := ch.Name
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	switch base {
	case "R", "G", "B", "Y", "RY", "BY", "U", "V":
		return dwaLossyDCT
	case "A", "AR", "AG", "AB":
		return dwaRLE
	}
	return dwaUnknown
}

// cscTriples finds R,G,B channel index triples within the same layer that
// all use the lossy scheme and share a geometry.
func cscTriples(shape ChunkShape, chans []pizChannel, schemes []dwaScheme) [][3]int {
	byName := make(map[string]int, len(shape.Channels))
	for i, ch := range shape.Channels {
		if schemes[i] == dwaLossyDCT {
			byName[ch.Name] = i
		}
	}

	var triples [][3]int
	for i, ch := range shape.Channels {
		base := ch.Name
		prefix := ""
		if j := strings.LastIndexByte(base, '.'); j >= 0 {
			prefix, base = base[:j+1], base[j+1:]
		}
		if base != "R" || schemes[i] != dwaLossyDCT {
			continue
		}
		g, okG := byName[prefix+"G"]
		b, okB := byName[prefix+"B"]
		if !okG || !okB {
			continue
		}
		if chans[g].nx != chans[i].nx || chans[g].ny != chans[i].ny ||
			chans[b].nx != chans[i].nx || chans[b].ny != chans[i].ny {
			continue
		}
		triples = append(triples, [3]int{i, g, b})
	}
	return triples
}

func csc709Forward(r, g, b float32) (y, u, v float32) {
	y = 0.2126*r + 0.7152*g + 0.0722*b
	u = -0.1146*r - 0.3854*g + 0.5000*b
	v = 0.5000*r - 0.4542*g - 0.0458*b
	return
}

func csc709Inverse(y, u, v float32) (r, g, b float32) {
	r = y + 1.5747*v
	g = y - 0.1873*u - 0.4682*v
	b = y + 1.8556*u
	return
}

// Orthonormal 8-point DCT-II basis. The matrix is orthogonal, so the
// inverse transform contracts against the same table.
var dctBasis [8][8]float32

func init() {
	for u := 0; u < 8; u++ {
		c := 0.5
		if u == 0 {
			c = 1 / (2 * math.Sqrt2)
		}
		for x := 0; x < 8; x++ {
			dctBasis[u][x] = float32(c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16))
		}
	}
}

func dctForward8x8(blk *[64]float32) {
	var tmp [64]float32
	for y := 0; y < 8; y++ {
		for u := 0; u < 8; u++ {
			var s float32
			for x := 0; x < 8; x++ {
				s += blk[y*8+x] * dctBasis[u][x]
			}
			tmp[y*8+u] = s
		}
	}
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			var s float32
			for y := 0; y < 8; y++ {
				s += tmp[y*8+x] * dctBasis[u][y]
			}
			blk[u*8+x] = s
		}
	}
}

func dctInverse8x8(blk *[64]float32) {
	var tmp [64]float32
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			var s float32
			for u := 0; u < 8; u++ {
				s += blk[u*8+x] * dctBasis[u][y]
			}
			tmp[y*8+x] = s
		}
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			var s float32
			for u := 0; u < 8; u++ {
				s += tmp[y*8+u] * dctBasis[u][x]
			}
			blk[y*8+x] = s
		}
	}
}

// dwaZigZag walks coefficients from low to high frequency.
var dwaZigZag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// dwaQuantWeight scales the error tolerance per zig-zag position; higher
// frequencies tolerate more error.
var dwaQuantWeight = [64]float32{
	0.0, 1.0, 1.0, 1.2, 1.2, 1.2, 1.4, 1.4,
	1.4, 1.4, 1.7, 1.7, 1.7, 1.7, 1.7, 2.0,
	2.0, 2.0, 2.0, 2.0, 2.0, 2.4, 2.4, 2.4,
	2.4, 2.4, 2.4, 2.4, 2.8, 2.8, 2.8, 2.8,
	2.8, 2.8, 2.8, 3.3, 3.3, 3.3, 3.3, 3.3,
	3.3, 3.3, 4.0, 4.0, 4.0, 4.0, 4.0, 4.0,
	4.7, 4.7, 4.7, 4.7, 4.7, 5.6, 5.6, 5.6,
	5.6, 6.7, 6.7, 6.7, 8.0, 8.0, 9.5, 11.0,
}

// AC values 0xff00..0xffff are negative NaN bit patterns that the
// quantizer never emits, so they are repurposed as zero-run tokens.
const (
	dwaRunMask = 0xff00
	dwaMaxRun  = 0xff
)

const dwaHeaderSize = 8 * 8

type dwaCodec struct {
	id    int
	lines int
}

func init() {
	register(dwaCodec{id: IDDWAA, lines: 32})
	register(dwaCodec{id: IDDWAB, lines: 256})
}

func (c dwaCodec) ID() int            { return c.id }
func (c dwaCodec) LinesPerChunk() int { return c.lines }
func (dwaCodec) Lossless() bool       { return false }

// dwaGatherPlanes splits the raw chunk into one contiguous plane per
// channel; HALF planes come back as uint16 slices, others as bytes.
func dwaGatherPlanes(src []byte, shape ChunkShape, chans []pizChannel) ([][]uint16, [][]byte) {
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
	return halves, raws
}

// dwaScatterPlanes reassembles the raw chunk layout from per-channel
// planes.
func dwaScatterPlanes(dst []byte, shape ChunkShape, chans []pizChannel, halves [][]uint16, raws [][]byte) {
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
}

func (c dwaCodec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	chans, _ := pizLayout(shape)
	schemes := make([]dwaScheme, len(chans))
	for i, ch := range shape.Channels {
		schemes[i] = dwaClassify(ch)
	}

	halves, raws := dwaGatherPlanes(src, shape, chans)

	floats := make([][]float32, len(chans))
	for i := range chans {
		if schemes[i] != dwaLossyDCT {
			continue
		}
		p := make([]float32, len(halves[i]))
		for j, v := range halves[i] {
			p[j] = half.FromBits(v).Float32()
		}
		floats[i] = p
	}

	for _, t := range cscTriples(shape, chans, schemes) {
		r, g, b := floats[t[0]], floats[t[1]], floats[t[2]]
		for j := range r {
			r[j], g[j], b[j] = csc709Forward(r[j], g[j], b[j])
		}
	}

	level := shape.DWALevel
	if level <= 0 {
		level = 45
	}
	tolBase := level / 100000

	var unknownRaw, rleRaw []byte
	var acSyms, dcSyms []uint16
	zeroRun := 0

	flushRun := func() {
		for zeroRun > 0 {
			n := zeroRun
			if n > dwaMaxRun {
				n = dwaMaxRun
			}
			acSyms = append(acSyms, uint16(dwaRunMask|n))
			zeroRun -= n
		}
	}

	var blk [64]float32
	for i, ch := range shape.Channels {
		g := chans[i]
		switch schemes[i] {
		case dwaUnknown:
			if ch.Type == SampleHalf {
				for _, v := range halves[i] {
					unknownRaw = append(unknownRaw, byte(v), byte(v>>8))
				}
			} else {
				unknownRaw = append(unknownRaw, raws[i]...)
			}

		case dwaRLE:
			for _, v := range halves[i] {
				rleRaw = append(rleRaw, byte(v), byte(v>>8))
			}

		case dwaLossyDCT:
			p := floats[i]
			for by := 0; by < g.ny; by += 8 {
				for bx := 0; bx < g.nx; bx += 8 {
					for y := 0; y < 8; y++ {
						sy := by + y
						if sy >= g.ny {
							sy = g.ny - 1
						}
						for x := 0; x < 8; x++ {
							sx := bx + x
							if sx >= g.nx {
								sx = g.nx - 1
							}
							blk[y*8+x] = p[sy*g.nx+sx]
						}
					}
					dctForward8x8(&blk)

					dcSyms = append(dcSyms, half.FromFloat32(blk[0]).Bits())
					for zz := 1; zz < 64; zz++ {
						v := blk[dwaZigZag[zz]]
						tol := tolBase * dwaQuantWeight[zz]
						if v < tol && v > -tol {
							zeroRun++
							continue
						}
						bits := half.FromFloat32(v).Bits()
						if bits&0x7FFF == 0 {
							zeroRun++
							continue
						}
						flushRun()
						acSyms = append(acSyms, bits)
					}
				}
			}
			flushRun()
		}
	}

	// DC coefficients delta well between neighboring blocks.
	dcBytes := make([]byte, 2*len(dcSyms))
	prev := uint16(0)
	for j, v := range dcSyms {
		d := v - prev
		prev = v
		dcBytes[2*j] = byte(d)
		dcBytes[2*j+1] = byte(d >> 8)
	}

	unknownComp, err := deflate(unknownRaw, shape.ZipLevel)
	if err != nil {
		return nil, err
	}
	dcComp, err := deflate(dcBytes, shape.ZipLevel)
	if err != nil {
		return nil, err
	}
	rlePre := make([]byte, len(rleRaw))
	splitBytes(rlePre, rleRaw)
	deltaEncode(rlePre)
	rleComp, err := deflate(rleEncode(rlePre), shape.ZipLevel)
	if err != nil {
		return nil, err
	}
	acComp := hufCompress(acSyms)

	out := make([]byte, dwaHeaderSize, dwaHeaderSize+len(unknownComp)+len(acComp)+len(dcComp)+len(rleComp))
	put := func(off int, v uint64) {
		for k := 0; k < 8; k++ {
			out[off+k] = byte(v >> (8 * k))
		}
	}
	put(0, uint64(len(unknownComp)))
	put(8, uint64(len(unknownRaw)))
	put(16, uint64(len(acComp)))
	put(24, uint64(len(acSyms)))
	put(32, uint64(len(dcComp)))
	put(40, uint64(len(dcSyms)))
	put(48, uint64(len(rleComp)))
	put(56, uint64(len(rleRaw)))

	out = append(out, unknownComp...)
	out = append(out, acComp...)
	out = append(out, dcComp...)
	out = append(out, rleComp...)
	return out, nil
}

func (c dwaCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}
	if len(src) < dwaHeaderSize {
		return nil, fmt.Errorf("%w: dwa chunk shorter than header", ErrMalformed)
	}

	get := func(off int) uint64 {
		var v uint64
		for k := 0; k < 8; k++ {
			v |= uint64(src[off+k]) << (8 * k)
		}
		return v
	}
	unknownCompSize := int(get(0))
	unknownRawSize := int(get(8))
	acCompSize := int(get(16))
	acCount := int(get(24))
	dcCompSize := int(get(32))
	dcCount := int(get(40))
	rleCompSize := int(get(48))
	rleRawSize := int(get(56))

	for _, n := range []int{unknownCompSize, unknownRawSize, acCompSize, acCount, dcCompSize, dcCount, rleCompSize, rleRawSize} {
		if n < 0 || n > 1<<31 {
			return nil, fmt.Errorf("%w: dwa header size out of range", ErrMalformed)
		}
	}
	off := dwaHeaderSize
	if off+unknownCompSize+acCompSize+dcCompSize+rleCompSize > len(src) {
		return nil, fmt.Errorf("%w: dwa chunk truncated", ErrMalformed)
	}
	unknownComp := src[off : off+unknownCompSize]
	off += unknownCompSize
	acComp := src[off : off+acCompSize]
	off += acCompSize
	dcComp := src[off : off+dcCompSize]
	off += dcCompSize
	rleComp := src[off : off+rleCompSize]

	var unknownRaw []byte
	var err error
	if unknownRawSize > 0 {
		unknownRaw, err = inflate(unknownComp, unknownRawSize)
		if err != nil {
			return nil, err
		}
	}

	acSyms := make([]uint16, acCount)
	if acCount > 0 {
		if err := hufUncompress(acComp, acSyms); err != nil {
			return nil, err
		}
	}

	dcSyms := make([]uint16, dcCount)
	if dcCount > 0 {
		dcBytes, err := inflate(dcComp, 2*dcCount)
		if err != nil {
			return nil, err
		}
		prev := uint16(0)
		for j := range dcSyms {
			prev += uint16(dcBytes[2*j]) | uint16(dcBytes[2*j+1])<<8
			dcSyms[j] = prev
		}
	}

	var rleRaw []byte
	if rleRawSize > 0 {
		rleEnc, err := inflateAll(rleComp)
		if err != nil {
			return nil, err
		}
		rlePre := make([]byte, rleRawSize)
		if err := rleDecode(rleEnc, rlePre); err != nil {
			return nil, err
		}
		deltaDecode(rlePre)
		rleRaw = make([]byte, rleRawSize)
		mergeBytes(rleRaw, rlePre)
	}

	chans, _ := pizLayout(shape)
	schemes := make([]dwaScheme, len(chans))
	for i, ch := range shape.Channels {
		schemes[i] = dwaClassify(ch)
	}

	halves := make([][]uint16, len(chans))
	raws := make([][]byte, len(chans))
	floats := make([][]float32, len(chans))

	acPos, dcPos := 0, 0
	unknownPos, rlePos := 0, 0
	pending := 0 // zeros carried over from a run token

	var blk [64]float32
	for i, ch := range shape.Channels {
		g := chans[i]
		switch schemes[i] {
		case dwaUnknown:
			n := g.nx * g.ny * ch.Type.Size()
			if unknownPos+n > len(unknownRaw) {
				return nil, fmt.Errorf("%w: dwa unknown stream short for %s", ErrMalformed, ch.Name)
			}
			if ch.Type == SampleHalf {
				p := make([]uint16, g.nx*g.ny)
				for j := range p {
					p[j] = uint16(unknownRaw[unknownPos+2*j]) | uint16(unknownRaw[unknownPos+2*j+1])<<8
				}
				halves[i] = p
			} else {
				raws[i] = unknownRaw[unknownPos : unknownPos+n]
			}
			unknownPos += n

		case dwaRLE:
			n := g.nx * g.ny * 2
			if rlePos+n > len(rleRaw) {
				return nil, fmt.Errorf("%w: dwa rle stream short for %s", ErrMalformed, ch.Name)
			}
			p := make([]uint16, g.nx*g.ny)
			for j := range p {
				p[j] = uint16(rleRaw[rlePos+2*j]) | uint16(rleRaw[rlePos+2*j+1])<<8
			}
			halves[i] = p
			rlePos += n

		case dwaLossyDCT:
			p := make([]float32, g.nx*g.ny)
			floats[i] = p
			for by := 0; by < g.ny; by += 8 {
				for bx := 0; bx < g.nx; bx += 8 {
					if dcPos >= len(dcSyms) {
						return nil, fmt.Errorf("%w: dwa dc stream exhausted", ErrMalformed)
					}
					blk[0] = half.FromBits(dcSyms[dcPos]).Float32()
					dcPos++
					for zz := 1; zz < 64; zz++ {
						if pending > 0 {
							pending--
							blk[dwaZigZag[zz]] = 0
							continue
						}
						if acPos >= len(acSyms) {
							return nil, fmt.Errorf("%w: dwa ac stream exhausted", ErrMalformed)
						}
						v := acSyms[acPos]
						acPos++
						if v&dwaRunMask == dwaRunMask {
							run := int(v & dwaMaxRun)
							if run == 0 {
								return nil, fmt.Errorf("%w: dwa empty zero run", ErrMalformed)
							}
							pending = run - 1
							blk[dwaZigZag[zz]] = 0
							continue
						}
						blk[dwaZigZag[zz]] = half.FromBits(v).Float32()
					}
					dctInverse8x8(&blk)
					for y := 0; y < 8 && by+y < g.ny; y++ {
						for x := 0; x < 8 && bx+x < g.nx; x++ {
							p[(by+y)*g.nx+bx+x] = blk[y*8+x]
						}
					}
				}
			}
		}
	}

	for _, t := range cscTriples(shape, chans, schemes) {
		r, g, b := floats[t[0]], floats[t[1]], floats[t[2]]
		for j := range r {
			r[j], g[j], b[j] = csc709Inverse(r[j], g[j], b[j])
		}
	}

	for i := range chans {
		if schemes[i] != dwaLossyDCT {
			continue
		}
		p := make([]uint16, len(floats[i]))
		for j, v := range floats[i] {
			p[j] = half.FromFloat32(v).Bits()
		}
		halves[i] = p
	}

	dst := make([]byte, rawSize)
	dwaScatterPlanes(dst, shape, chans, halves, raws)
	return dst, nil
}
