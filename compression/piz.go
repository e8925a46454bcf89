package compression

import "fmt"

// PIZ treats every sample as one or two 16-bit symbols, remaps the symbols
// that actually occur onto a dense range through a bitmap-derived lookup
// table, wavelet-transforms each channel plane, and entropy-codes the
// result with the canonical Huffman stage. The chunk layout is:
//
//	uint16 minNonZero, uint16 maxNonZero   bitmap byte range
//	bitmap[minNonZero..maxNonZero]         1 bit per used symbol value
//	int32 length                           Huffman block size
//	Huffman block                          table + bitstream
//
// PIZ is lossless for all three sample types.

const pizBitmapSize = 1 << 13 // 65536 symbol bits

// pizChannel locates one channel's plane inside the staging buffer.
type pizChannel struct {
	start int // offset into the symbol buffer
	nx    int // samples per row
	ny    int // rows in this chunk
	size  int // 16-bit words per sample
}

/// pizLayout stages per-channel planes: the raw chunk layout is row-major
// with channels concatenated per row, while the transform wants each
// channel contiguous.
func pizLayout(shape ChunkShape) ([]pizChannel, int) {
	chans := make([]pizChannel, len(shape.Channels))
	total := 0
	for i, ch := range shape.Channels {
		nx := shape.RowSamples(ch)
		ny := 0
		for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
			if shape.RowPresent(ch, y) {
				ny++
			}
		}
		size := ch.Type.Size() / 2
		chans[i] = pizChannel{start: total, nx: nx, ny: ny, size: size}
		total += nx * ny * size
	}
	return chans, total
}

// gatherSymbols splits the raw chunk bytes into per-channel symbol planes.
func gatherSymbols(src []byte, shape ChunkShape, chans []pizChannel, syms []uint16) {
	row := make([]int, len(chans))
	in := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for i, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			c := &chans[i]
			n := c.nx * c.size
			base := c.start + row[i]*n
			for k := 0; k < n; k++ {
				syms[base+k] = uint16(src[in]) | uint16(src[in+1])<<8
				in += 2
			}
			row[i]++
		}
	}
}

// scatterSymbols is the inverse of gatherSymbols.
func scatterSymbols(syms []uint16, shape ChunkShape, chans []pizChannel, dst []byte) {
	row := make([]int, len(chans))
	out := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for i, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			c := &chans[i]
			n := c.nx * c.size
			base := c.start + row[i]*n
			for k := 0; k < n; k++ {
				dst[out] = byte(syms[base+k])
				dst[out+1] = byte(syms[base+k] >> 8)
				out += 2
			}
			row[i]++
		}
	}
}

// buildBitmap marks every occurring symbol value; zero is always implied
// and left out of the bitmap.
func buildBitmap(syms []uint16) (bitmap []byte, minNZ, maxNZ int) {
	bitmap = make([]byte, pizBitmapSize)
	for _, s := range syms {
		bitmap[s>>3] |= 1 << (s & 7)
	}
	bitmap[0] &^= 1

	minNZ, maxNZ = pizBitmapSize-1, 0
	for i, b := range bitmap {
		if b != 0 {
			if i < minNZ {
				minNZ = i
			}
			if i > maxNZ {
				maxNZ = i
			}
		}
	}
	return bitmap, minNZ, maxNZ
}

// forwardLUT maps used symbol values to a dense range; returns the largest
// mapped value.
func forwardLUT(bitmap []byte) (lut []uint16, maxValue uint16) {
	lut = make([]uint16, 1<<16)
	k := uint16(0)
	for i := 0; i < 1<<16; i++ {
		if i == 0 || bitmap[i>>3]&(1<<(i&7)) != 0 {
			lut[i] = k
			k++
		}
	}
	return lut, k - 1
}

// reverseLUT maps the dense range back to symbol values.
func reverseLUT(bitmap []byte) (lut []uint16, maxValue uint16) {
	lut = make([]uint16, 1<<16)
	k := 0
	for i := 0; i < 1<<16; i++ {
		if i == 0 || bitmap[i>>3]&(1<<(i&7)) != 0 {
			lut[k] = uint16(i)
			k++
		}
	}
	return lut, uint16(k - 1)
}

func applyLUT(lut []uint16, syms []uint16) {
	for i, s := range syms {
		syms[i] = lut[s]
	}
}

type pizCodec struct{}

func init() { register(pizCodec{}) }

func (pizCodec) ID() int            { return IDPIZ }
func (pizCodec) LinesPerChunk() int { return 32 }
func (pizCodec) Lossless() bool     { return true }

func (pizCodec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if len(src)%2 != 0 {
		return nil, fmt.Errorf("%w: piz chunk has odd byte count", ErrMalformed)
	}

	chans, total := pizLayout(shape)
	if total*2 != len(src) {
		return nil, fmt.Errorf("%w: piz chunk is %d bytes, want %d",
			ErrMalformed, len(src), total*2)
	}
	syms := make([]uint16, total)
	gatherSymbols(src, shape, chans, syms)

	bitmap, minNZ, maxNZ := buildBitmap(syms)
	lut, maxValue := forwardLUT(bitmap)
	applyLUT(lut, syms)

	for _, c := range chans {
		for j := 0; j < c.size; j++ {
			wav2DEncode(syms[c.start+j:], c.nx, c.size, c.ny, c.nx*c.size, maxValue)
		}
	}

	huf := hufCompress(syms)

	bitmapLen := 0
	if minNZ <= maxNZ {
		bitmapLen = maxNZ - minNZ + 1
	}
	out := make([]byte, 0, 4+bitmapLen+4+len(huf))
	out = append(out, byte(minNZ), byte(minNZ>>8), byte(maxNZ), byte(maxNZ>>8))
	if minNZ <= maxNZ {
		out = append(out, bitmap[minNZ:maxNZ+1]...)
	}
	out = append(out, byte(len(huf)), byte(len(huf)>>8), byte(len(huf)>>16), byte(len(huf)>>24))
	out = append(out, huf...)
	return out, nil
}

func (pizCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}
	if len(src) < 8 {
		return nil, fmt.Errorf("%w: piz chunk shorter than its header", ErrMalformed)
	}

	minNZ := int(src[0]) | int(src[1])<<8
	maxNZ := int(src[2]) | int(src[3])<<8
	if minNZ >= pizBitmapSize || maxNZ >= pizBitmapSize {
		return nil, fmt.Errorf("%w: piz bitmap range [%d, %d]", ErrMalformed, minNZ, maxNZ)
	}
	pos := 4

	bitmap := make([]byte, pizBitmapSize)
	if minNZ <= maxNZ {
		n := maxNZ - minNZ + 1
		if pos+n > len(src) {
			return nil, fmt.Errorf("%w: piz bitmap truncated", ErrMalformed)
		}
		copy(bitmap[minNZ:], src[pos:pos+n])
		pos += n
	}

	if pos+4 > len(src) {
		return nil, fmt.Errorf("%w: piz chunk missing entropy block size", ErrMalformed)
	}
	hufLen := int(src[pos]) | int(src[pos+1])<<8 | int(src[pos+2])<<16 | int(src[pos+3])<<24
	pos += 4
	if hufLen < 0 || pos+hufLen > len(src) {
		return nil, fmt.Errorf("%w: piz entropy block size %d out of range", ErrMalformed, hufLen)
	}

	chans, total := pizLayout(shape)
	if total*2 != rawSize {
		return nil, fmt.Errorf("%w: piz raw size mismatch", ErrMalformed)
	}
	syms := make([]uint16, total)
	if err := hufUncompress(src[pos:pos+hufLen], syms); err != nil {
		return nil, err
	}

	lut, maxValue := reverseLUT(bitmap)

	for _, c := range chans {
		for j := 0; j < c.size; j++ {
			wav2DDecode(syms[c.start+j:], c.nx, c.size, c.ny, c.nx*c.size, maxValue)
		}
	}

	applyLUT(lut, syms)

	dst := make([]byte, rawSize)
	scatterSymbols(syms, shape, chans, dst)
	return dst, nil
}
