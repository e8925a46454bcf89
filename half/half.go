// Package half implements the IEEE 754 binary16 floating-point format used
// by the HALF pixel type: 1 sign bit, 5 exponent bits (bias 15), 10 mantissa
// bits. Conversions to and from float32 are exact where representable and
// round to nearest even otherwise.
package half

import (
	"math"
	"strconv"
)

// Half is an IEEE 754 binary16 value stored in a uint16.
type Half uint16

const (
	signMask     = 0x8000
	exponentMask = 0x7C00
	mantissaMask = 0x03FF

	exponentBias = 15
	maxExponent  = 31
)

// Named values.
const (
	PosInf  = Half(0x7C00)
	NegInf  = Half(0xFC00)
	NaN     = Half(0x7E00)
	Zero    = Half(0x0000)
	NegZero = Half(0x8000)

	// Max is the largest finite value, 65504.
	Max = Half(0x7BFF)
	// SmallestNormal is the smallest positive normalized value, 2^-14.
	SmallestNormal = Half(0x0400)
	// SmallestSubnormal is the smallest positive value, 2^-24.
	SmallestSubnormal = Half(0x0001)
)

// FromBits reinterprets a raw binary16 bit pattern as a Half.
func FromBits(bits uint16) Half {
	return Half(bits)
}

// Bits returns the raw binary16 bit pattern.
func (h Half) Bits() uint16 {
	return uint16(h)
}

// FromFloat32 converts f to binary16, rounding to nearest even. Values
// outside the half range become infinities; NaN payload bits are preserved
// where they fit.
func FromFloat32(f float32) Half {
	bits := math.Float32bits(f)
	sign := uint16(bits >> 16 & signMask)
	exp := int(bits >> 23 & 0xFF)
	man := bits & 0x007FFFFF

	if exp == 0xFF {
		if man == 0 {
			return Half(sign | exponentMask)
		}
		q := uint16(man >> 13)
		if q == 0 {
			q = 1 // keep NaN from collapsing to Inf
		}
		return Half(sign | exponentMask | q)
	}
	if exp == 0 {
		// float32 subnormals are below half's subnormal range
		return Half(sign)
	}

	exp = exp - 127 + exponentBias
	if exp >= maxExponent {
		return Half(sign | exponentMask)
	}
	if exp <= 0 {
		if exp < -10 {
			return Half(sign)
		}
		// Subnormal result: restore the implicit bit, then shift and round.
		man |= 0x00800000
		shift := uint(14 - exp)
		m := man >> shift
		round := man >> (shift - 1) & 1
		sticky := man & (1<<(shift-1) - 1)
		if round != 0 && (sticky != 0 || m&1 != 0) {
			m++
		}
		return Half(sign | uint16(m&mantissaMask))
	}

	m := man >> 13
	round := man >> 12 & 1
	sticky := man & 0x0FFF
	if round != 0 && (sticky != 0 || m&1 != 0) {
		m++
		if m > mantissaMask {
			m = 0
			exp++
			if exp >= maxExponent {
				return Half(sign | exponentMask)
			}
		}
	}
	return Half(sign | uint16(exp)<<10 | uint16(m))
}

// Float32 converts h to float32. The conversion is exact.
func (h Half) Float32() float32 {
	sign := uint32(h&signMask) << 16
	exp := int(h >> 10 & 0x1F)
	man := uint32(h & mantissaMask)

	switch exp {
	case 0:
		if man == 0 {
			return math.Float32frombits(sign)
		}
		// Normalize the subnormal.
		for man&0x0400 == 0 {
			man <<= 1
			exp--
		}
		man &= mantissaMask
		exp = exp + 1 - exponentBias + 127
		return math.Float32frombits(sign | uint32(exp)<<23 | man<<13)
	case maxExponent:
		if man == 0 {
			return math.Float32frombits(sign | 0x7F800000)
		}
		return math.Float32frombits(sign | 0x7F800000 | 0x00400000 | man<<13)
	default:
		exp = exp - exponentBias + 127
		return math.Float32frombits(sign | uint32(exp)<<23 | man<<13)
	}
}

// FromFloat64 converts f to binary16. The double rounding through float32 is
// harmless: every float64 that rounds differently lands on a float32 exactly
// representable boundary.
func FromFloat64(f float64) Half {
	return FromFloat32(float32(f))
}

// Float64 converts h to float64.
func (h Half) Float64() float64 {
	return float64(h.Float32())
}

// IsNaN reports whether h is a NaN.
func (h Half) IsNaN() bool {
	return h&exponentMask == exponentMask && h&mantissaMask != 0
}

// IsInf reports whether h is positive or negative infinity.
func (h Half) IsInf() bool {
	return h&^signMask == exponentMask
}

// IsFinite reports whether h is neither Inf nor NaN.
func (h Half) IsFinite() bool {
	return h&exponentMask != exponentMask
}

// IsZero reports whether h is positive or negative zero.
func (h Half) IsZero() bool {
	return h&^signMask == 0
}

// Abs returns h with the sign bit cleared.
func (h Half) Abs() Half {
	return h &^ signMask
}

// Neg returns h with the sign bit flipped.
func (h Half) Neg() Half {
	return h ^ signMask
}

// String formats h the way strconv formats the equivalent float32.
func (h Half) String() string {
	return strconv.FormatFloat(h.Float64(), 'g', -1, 32)
}

// FromFloat32Slice converts src into a new Half slice.
func FromFloat32Slice(src []float32) []Half {
	dst := make([]Half, len(src))
	for i, f := range src {
		dst[i] = FromFloat32(f)
	}
	return dst
}

// ToFloat32Slice converts src into a new float32 slice.
func ToFloat32Slice(src []Half) []float32 {
	dst := make([]float32, len(src))
	for i, h := range src {
		dst[i] = h.Float32()
	}
	return dst
}
