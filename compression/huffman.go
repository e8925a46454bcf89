package compression

import "fmt"

// Canonical Huffman entropy stage of the PIZ scheme. Symbols are 16-bit
// values plus one pseudo-symbol the encoder uses as a run-length marker.
// The code table travels with the chunk as a 6-bit-packed list of code
// lengths; both sides rebuild the canonical codes from the lengths, so
// only lengths need to agree bit for bit.

const (
	hufEncSize  = 65537 // 16-bit symbols plus the run-length pseudo-symbol
	hufDecBits  = 14
	hufDecSize  = 1 << hufDecBits
	hufDecMask  = hufDecSize - 1
	hufMaxLen   = 58
	hufTableHdr = 20 // im, iM, tableLength, nBits, reserved (uint32 each)

	// Zero-run codes in the packed table: 59..62 encode runs of 2..5
	// zero lengths, 63 prefixes an 8-bit count of a 6..261 run.
	hufShortZeroRun = 59
	hufLongZeroRun  = 63
	hufShortestLong = 2 + hufLongZeroRun - hufShortZeroRun
	hufLongestLong  = 255 + hufShortestLong
)

// A packed code-table entry keeps the canonical code in the high bits and
// the code length in the low 6 bits.
func hufCodeOf(c uint64) uint64 { return c >> 6 }
func hufLenOf(c uint64) int     { return int(c & 63) }

// hufCanonicalCodes rewrites a table of code lengths into packed
// length+code entries using the canonical numbering: codes of each length
// are assigned in symbol order, derived from longest length up.
func hufCanonicalCodes(table []uint64) {
	var perLen [hufMaxLen + 1]uint64
	for _, l := range table {
		perLen[l]++
	}
	c := uint64(0)
	for i := hufMaxLen; i > 0; i-- {
		nc := (c + perLen[i]) >> 1
		perLen[i] = c
		c = nc
	}
	for i, l := range table {
		if l > 0 {
			table[i] = uint64(l) | perLen[l]<<6
			perLen[l]++
		}
	}
}

// hufBuildTable turns symbol frequencies into a packed canonical code
// table. It appends the run-length pseudo-symbol just past the highest
// used symbol and returns the used symbol range [im, iM]; iM is the
// pseudo-symbol.
func hufBuildTable(freq []uint64) (im, iM int) {
	for freq[im] == 0 {
		im++
	}

	// Symbols whose chains share a frequency cell are linked through next;
	// when two heap entries meld, every symbol in both chains gains a bit.
	next := make([]int, hufEncSize)
	heap := make([]int, 0, hufEncSize)
	for i := im; i < hufEncSize-1; i++ {
		next[i] = i
		if freq[i] > 0 {
			heap = append(heap, i)
			iM = i
		}
	}

	iM++
	freq[iM] = 1
	next[iM] = iM
	heap = append(heap, iM)

	lengths := make([]uint64, hufEncSize)

	less := func(a, b int) bool {
		if freq[a] != freq[b] {
			return freq[a] < freq[b]
		}
		return a < b
	}
	down := func(i int) {
		for {
			l, r, m := 2*i+1, 2*i+2, i
			if l < len(heap) && less(heap[l], heap[m]) {
				m = l
			}
			if r < len(heap) && less(heap[r], heap[m]) {
				m = r
			}
			if m == i {
				return
			}
			heap[i], heap[m] = heap[m], heap[i]
			i = m
		}
	}
	for i := len(heap)/2 - 1; i >= 0; i-- {
		down(i)
	}
	pop := func() int {
		top := heap[0]
		heap[0] = heap[len(heap)-1]
		heap = heap[:len(heap)-1]
		down(0)
		return top
	}

	for len(heap) > 1 {
		a := pop()
		b := heap[0]
		freq[b] += freq[a]
		down(0)

		for j := b; ; j = next[j] {
			lengths[j]++
			if next[j] == j {
				next[j] = a
				break
			}
		}
		for j := a; ; j = next[j] {
			lengths[j]++
			if next[j] == j {
				break
			}
		}
	}

	hufCanonicalCodes(lengths)
	copy(freq, lengths)
	return im, iM
}

// bitWriter accumulates MSB-first bits.
type bitWriter struct {
	out []byte
	acc uint64
	n   int
}

func (w *bitWriter) writeBits(nBits int, v uint64) {
	w.acc = w.acc<<nBits | v
	w.n += nBits
	for w.n >= 8 {
		w.n -= 8
		w.out = append(w.out, byte(w.acc>>w.n))
	}
}

func (w *bitWriter) writeCode(packed uint64) {
	w.writeBits(hufLenOf(packed), hufCodeOf(packed))
}

func (w *bitWriter) flush() {
	if w.n > 0 {
		w.out = append(w.out, byte(w.acc<<(8-w.n)))
		w.n = 0
	}
}

// hufPackTable serializes the code lengths of symbols im..iM as 6-bit
// fields with zero-run folding.
func hufPackTable(table []uint64, im, iM int) []byte {
	w := bitWriter{out: make([]byte, 0, (iM-im)/2+8)}
	for i := im; i <= iM; i++ {
		l := hufLenOf(table[i])
		if l == 0 {
			zerun := 1
			for i < iM && zerun < hufLongestLong && hufLenOf(table[i+1]) == 0 {
				i++
				zerun++
			}
			if zerun >= 2 {
				if zerun >= hufShortestLong {
					w.writeBits(6, hufLongZeroRun)
					w.writeBits(8, uint64(zerun-hufShortestLong))
				} else {
					w.writeBits(6, uint64(hufShortZeroRun+zerun-2))
				}
				continue
			}
		}
		w.writeBits(6, uint64(l))
	}
	w.flush()
	return w.out
}

// hufUnpackTable parses a packed length table back into packed canonical
// codes for symbols im..iM.
func hufUnpackTable(data []byte, im, iM int) ([]uint64, error) {
	table := make([]uint64, hufEncSize)
	var acc uint64
	var n, pos int

	read := func(nBits int) (uint64, error) {
		for n < nBits {
			if pos >= len(data) {
				return 0, fmt.Errorf("%w: huffman table ends early", ErrMalformed)
			}
			acc = acc<<8 | uint64(data[pos])
			pos++
			n += 8
		}
		n -= nBits
		return acc >> n & (1<<nBits - 1), nil
	}

	for i := im; i <= iM; i++ {
		l, err := read(6)
		if err != nil {
			return nil, err
		}
		switch {
		case l == hufLongZeroRun:
			c, err := read(8)
			if err != nil {
				return nil, err
			}
			zerun := int(c) + hufShortestLong
			if i+zerun > iM+1 {
				return nil, fmt.Errorf("%w: huffman table zero run too long", ErrMalformed)
			}
			i += zerun - 1
		case l >= hufShortZeroRun:
			zerun := int(l) - hufShortZeroRun + 2
			if i+zerun > iM+1 {
				return nil, fmt.Errorf("%w: huffman table zero run too long", ErrMalformed)
			}
			i += zerun - 1
		default:
			table[i] = l
		}
	}

	hufCanonicalCodes(table)
	return table, nil
}

// hufDecTable is the 14-bit-indexed decoding table. Codes no longer than
// hufDecBits fill every index they prefix; longer codes hang off the index
// of their first 14 bits and are matched linearly.
type hufDecEntry struct {
	len  int
	sym  int
	long []int
}

func hufBuildDecTable(table []uint64, im, iM int) ([]hufDecEntry, error) {
	dec := make([]hufDecEntry, hufDecSize)
	for sym := im; sym <= iM; sym++ {
		c := hufCodeOf(table[sym])
		l := hufLenOf(table[sym])
		if l == 0 {
			continue
		}
		if c>>l != 0 {
			return nil, fmt.Errorf("%w: huffman code longer than its length", ErrMalformed)
		}
		if l > hufDecBits {
			e := &dec[c>>(l-hufDecBits)]
			if e.len != 0 {
				return nil, fmt.Errorf("%w: huffman long code under short code", ErrMalformed)
			}
			e.long = append(e.long, sym)
			continue
		}
		base := c << (hufDecBits - l)
		for i := uint64(0); i < 1<<(hufDecBits-l); i++ {
			e := &dec[base+i]
			if e.len != 0 || e.long != nil {
				return nil, fmt.Errorf("%w: huffman code table overlap", ErrMalformed)
			}
			e.len = l
			e.sym = sym
		}
	}
	return dec, nil
}

// hufEncode entropy-codes syms, using rlc as the run-length pseudo-symbol.
// Returns the bitstream and its exact length in bits.
func hufEncode(table []uint64, syms []uint16, rlc int) ([]byte, int) {
	w := bitWriter{out: make([]byte, 0, len(syms))}
	runCode := table[rlc]

	send := func(sym uint16, run int) {
		sc := table[sym]
		if hufLenOf(sc)+hufLenOf(runCode)+8 < hufLenOf(sc)*run {
			w.writeCode(sc)
			w.writeCode(runCode)
			w.writeBits(8, uint64(run))
		} else {
			for i := 0; i <= run; i++ {
				w.writeCode(sc)
			}
		}
	}

	s := syms[0]
	run := 0
	for _, v := range syms[1:] {
		if v == s && run < 255 {
			run++
			continue
		}
		send(s, run)
		s = v
		run = 0
	}
	send(s, run)

	nBits := len(w.out)*8 + w.n
	w.flush()
	return w.out, nBits
}

// hufDecode reads nBits of bitstream into exactly len(out) symbols.
func hufDecode(table []uint64, dec []hufDecEntry, data []byte, nBits, rlc int, out []uint16) error {
	var acc uint64
	var n int
	pos := 0
	written := 0
	byteLen := (nBits + 7) / 8
	if byteLen > len(data) {
		return fmt.Errorf("%w: huffman bitstream shorter than declared", ErrMalformed)
	}

	emit := func(sym int) error {
		if sym == rlc {
			// Run of the previous symbol; the count is the next 8 bits.
			for n < 8 {
				if pos >= byteLen {
					return fmt.Errorf("%w: huffman run count missing", ErrMalformed)
				}
				acc = acc<<8 | uint64(data[pos])
				pos++
				n += 8
			}
			n -= 8
			run := int(acc >> n & 0xFF)
			if written == 0 {
				return fmt.Errorf("%w: huffman run with no preceding symbol", ErrMalformed)
			}
			if written+run > len(out) {
				return fmt.Errorf("%w: huffman run overflows output", ErrMalformed)
			}
			prev := out[written-1]
			for i := 0; i < run; i++ {
				out[written] = prev
				written++
			}
			return nil
		}
		if written >= len(out) {
			return fmt.Errorf("%w: huffman output overflow", ErrMalformed)
		}
		out[written] = uint16(sym)
		written++
		return nil
	}

	matchLong := func(e *hufDecEntry) error {
		for _, sym := range e.long {
			l := hufLenOf(table[sym])
			for n < l && pos < byteLen {
				acc = acc<<8 | uint64(data[pos])
				pos++
				n += 8
			}
			if n >= l && hufCodeOf(table[sym]) == acc>>(n-l)&(1<<l-1) {
				n -= l
				return emit(sym)
			}
		}
		return fmt.Errorf("%w: invalid huffman code", ErrMalformed)
	}

	for pos < byteLen {
		acc = acc<<8 | uint64(data[pos])
		pos++
		n += 8
		for n >= hufDecBits {
			e := &dec[acc>>(n-hufDecBits)&hufDecMask]
			if e.len != 0 {
				n -= e.len
				if err := emit(e.sym); err != nil {
					return err
				}
			} else if e.long != nil {
				if err := matchLong(e); err != nil {
					return err
				}
			} else {
				return fmt.Errorf("%w: invalid huffman code", ErrMalformed)
			}
		}
	}

	// Decode what remains of the final partial byte.
	pad := (8 - nBits) & 7
	acc >>= pad
	n -= pad
	for n > 0 {
		e := &dec[acc<<(hufDecBits-n)&hufDecMask]
		if e.len == 0 || e.len > n {
			return fmt.Errorf("%w: invalid huffman code in final bits", ErrMalformed)
		}
		n -= e.len
		if err := emit(e.sym); err != nil {
			return err
		}
	}

	if written != len(out) {
		return fmt.Errorf("%w: huffman stream yields %d symbols, want %d",
			ErrMalformed, written, len(out))
	}
	return nil
}

// hufCompress encodes syms as the self-describing block the PIZ chunk
// embeds: a 20-byte header, the packed code table, and the bitstream.
func hufCompress(syms []uint16) []byte {
	if len(syms) == 0 {
		return nil
	}

	freq := make([]uint64, hufEncSize)
	for _, s := range syms {
		freq[s]++
	}
	im, iM := hufBuildTable(freq)

	packedTable := hufPackTable(freq, im, iM)
	bits, nBits := hufEncode(freq, syms, iM)

	out := make([]byte, hufTableHdr, hufTableHdr+len(packedTable)+len(bits))
	put32 := func(off int, v uint32) {
		out[off] = byte(v)
		out[off+1] = byte(v >> 8)
		out[off+2] = byte(v >> 16)
		out[off+3] = byte(v >> 24)
	}
	put32(0, uint32(im))
	put32(4, uint32(iM))
	put32(8, uint32(len(packedTable)))
	put32(12, uint32(nBits))
	out = append(out, packedTable...)
	out = append(out, bits...)
	return out
}

// hufUncompress decodes a block written by hufCompress (or any conforming
// encoder) into exactly len(out) symbols.
func hufUncompress(data []byte, out []uint16) error {
	if len(out) == 0 {
		return nil
	}
	if len(data) < hufTableHdr {
		return fmt.Errorf("%w: huffman block shorter than header", ErrMalformed)
	}
	get32 := func(off int) uint32 {
		return uint32(data[off]) | uint32(data[off+1])<<8 |
			uint32(data[off+2])<<16 | uint32(data[off+3])<<24
	}
	im := int(int32(get32(0)))
	iM := int(int32(get32(4)))
	tableLen := int(int32(get32(8)))
	nBits := int(int32(get32(12)))

	if im < 0 || im >= hufEncSize || iM < 0 || iM >= hufEncSize || im > iM {
		return fmt.Errorf("%w: huffman symbol range [%d, %d]", ErrMalformed, im, iM)
	}
	if nBits < 0 || tableLen < 0 || hufTableHdr+tableLen > len(data) {
		return fmt.Errorf("%w: huffman block sizes inconsistent", ErrMalformed)
	}

	table, err := hufUnpackTable(data[hufTableHdr:hufTableHdr+tableLen], im, iM)
	if err != nil {
		return err
	}
	dec, err := hufBuildDecTable(table, im, iM)
	if err != nil {
		return err
	}
	return hufDecode(table, dec, data[hufTableHdr+tableLen:], nBits, iM, out)
}
