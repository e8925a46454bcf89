package compression

// Reversible 2-D Haar-style wavelet transform used by the PIZ scheme. The
// transform works on 16-bit symbols in place, hierarchically over power-of-
// two spacings, with explicit x/y strides so interleaved multi-short
// channels can be transformed component by component.
//
// Two arithmetic modes share the structure: when every symbol fits in 14
// bits the average/difference pair uses plain signed arithmetic; otherwise
// a modulo form with offset keeps the pair inside 16 bits. Both invert
// exactly.

const (
	wavOffset  = 1 << 15
	wavMask    = 1<<16 - 1
	wav14Limit = 1 << 14
)

// wenc14 turns (a, b) into a rounded average and a difference.
func wenc14(a, b uint16) (uint16, uint16) {
	as, bs := int(int16(a)), int(int16(b))
	return uint16(int16((as + bs) >> 1)), uint16(int16(as - bs))
}

// wdec14 inverts wenc14.
func wdec14(l, h uint16) (uint16, uint16) {
	ms, ds := int(int16(l)), int(int16(h))
	return uint16(int16(ms + (ds+1)>>1)), uint16(int16(ms - ds>>1))
}

// wenc16 is the modulo form for full 16-bit symbols.
func wenc16(a, b uint16) (uint16, uint16) {
	ao := (int(a) + wavOffset) & wavMask
	m := (ao + int(b)) >> 1
	d := ao - int(b)
	if d < 0 {
		m = (m + wavOffset) & wavMask
	}
	return uint16(m), uint16(d & wavMask)
}

// wdec16 inverts wenc16.
func wdec16(l, h uint16) (uint16, uint16) {
	m, d := int(l), int(h)
	b := (m - d>>1) & wavMask
	a := (d + b - wavOffset) & wavMask
	return uint16(a), uint16(b)
}

// wav2DEncode transforms an nx-by-ny plane in place. ox and oy are the
// element strides between horizontally and vertically adjacent samples;
// maxValue selects the arithmetic mode.
func wav2DEncode(data []uint16, nx, ox, ny, oy int, maxValue uint16) {
	if nx == 0 || ny == 0 {
		return
	}
	w14 := maxValue < wav14Limit
	enc := wenc16
	if w14 {
		enc = wenc14
	}

	n := nx
	if ny < n {
		n = ny
	}

	for p, p2 := 1, 2; p2 <= n; p, p2 = p2, p2<<1 {
		ox1, ox2 := ox*p, ox*p2
		oy1, oy2 := oy*p, oy*p2

		for py := 0; py <= oy*(ny-p2); py += oy2 {
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				p01 := px + ox1
				p10 := px + oy1
				p11 := p10 + ox1

				// Rows first, then the two column pairs.
				l0, h0 := enc(data[px], data[p01])
				l1, h1 := enc(data[p10], data[p11])
				data[px], data[p10] = enc(l0, l1)
				data[p01], data[p11] = enc(h0, h1)
			}
			if nx&p != 0 {
				px := py + ox*(nx-p)
				data[px], data[px+oy1] = enc(data[px], data[px+oy1])
			}
		}
		if ny&p != 0 {
			py := oy * (ny - p)
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				data[px], data[px+ox1] = enc(data[px], data[px+ox1])
			}
		}
	}
}

// wav2DDecode inverts wav2DEncode.
func wav2DDecode(data []uint16, nx, ox, ny, oy int, maxValue uint16) {
	if nx == 0 || ny == 0 {
		return
	}
	w14 := maxValue < wav14Limit
	dec := wdec16
	if w14 {
		dec = wdec14
	}

	n := nx
	if ny < n {
		n = ny
	}

	// Walk the spacings from coarsest back down to 1.
	p := 1
	for p <= n {
		p <<= 1
	}
	p >>= 1
	p2 := p
	p >>= 1

	for p >= 1 {
		ox1, ox2 := ox*p, ox*p2
		oy1, oy2 := oy*p, oy*p2

		for py := 0; py <= oy*(ny-p2); py += oy2 {
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				p01 := px + ox1
				p10 := px + oy1
				p11 := p10 + ox1

				l0, l1 := dec(data[px], data[p10])
				h0, h1 := dec(data[p01], data[p11])
				data[px], data[p01] = dec(l0, h0)
				data[p10], data[p11] = dec(l1, h1)
			}
			if nx&p != 0 {
				px := py + ox*(nx-p)
				data[px], data[px+oy1] = dec(data[px], data[px+oy1])
			}
		}
		if ny&p != 0 {
			py := oy * (ny - p)
			for px := py; px <= py+ox*(nx-p2); px += ox2 {
				data[px], data[px+ox1] = dec(data[px], data[px+ox1])
			}
		}

		p2 = p
		p >>= 1
	}
}
