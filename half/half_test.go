package half

import (
	"math"
	"testing"
)

func TestExactValues(t *testing.T) {
	tests := []struct {
		bits uint16
		f    float32
	}{
		{0x0000, 0},
		{0x3C00, 1},
		{0xBC00, -1},
		{0x4000, 2},
		{0x3800, 0.5},
		{0x4200, 3},
		{0x7BFF, 65504},
		{0xFBFF, -65504},
		{0x0400, 6.103515625e-05},
		{0x0001, 5.960464477539063e-08},
	}
	for _, tt := range tests {
		if got := FromBits(tt.bits).Float32(); got != tt.f {
			t.Errorf("FromBits(0x%04X).Float32() = %v, want %v", tt.bits, got, tt.f)
		}
		if got := FromFloat32(tt.f); got.Bits() != tt.bits {
			t.Errorf("FromFloat32(%v) = 0x%04X, want 0x%04X", tt.f, got.Bits(), tt.bits)
		}
	}
}

func TestSpecials(t *testing.T) {
	if !PosInf.IsInf() || PosInf.IsFinite() {
		t.Error("PosInf misclassified")
	}
	if !NegInf.IsInf() {
		t.Error("NegInf misclassified")
	}
	if !NaN.IsNaN() || NaN.IsFinite() {
		t.Error("NaN misclassified")
	}
	if !Zero.IsZero() || !NegZero.IsZero() {
		t.Error("zeros misclassified")
	}

	if got := FromFloat32(float32(math.Inf(1))); got != PosInf {
		t.Errorf("FromFloat32(+Inf) = 0x%04X", got.Bits())
	}
	if got := FromFloat32(float32(math.Inf(-1))); got != NegInf {
		t.Errorf("FromFloat32(-Inf) = 0x%04X", got.Bits())
	}
	if got := FromFloat32(float32(math.NaN())); !got.IsNaN() {
		t.Errorf("FromFloat32(NaN) = 0x%04X, not NaN", got.Bits())
	}
	if !math.IsInf(PosInf.Float64(), 1) {
		t.Error("PosInf.Float64() not +Inf")
	}
	if !math.IsNaN(NaN.Float64()) {
		t.Error("NaN.Float64() not NaN")
	}
}

func TestOverflowUnderflow(t *testing.T) {
	if got := FromFloat32(65520); got != PosInf {
		t.Errorf("FromFloat32(65520) = 0x%04X, want +Inf", got.Bits())
	}
	if got := FromFloat32(1e10); got != PosInf {
		t.Errorf("FromFloat32(1e10) = 0x%04X, want +Inf", got.Bits())
	}
	if got := FromFloat32(-1e10); got != NegInf {
		t.Errorf("FromFloat32(-1e10) = 0x%04X, want -Inf", got.Bits())
	}
	if got := FromFloat32(1e-10); got != Zero {
		t.Errorf("FromFloat32(1e-10) = 0x%04X, want 0", got.Bits())
	}
	if got := FromFloat32(float32(math.Copysign(1e-10, -1))); got != NegZero {
		t.Errorf("tiny negative = 0x%04X, want -0", got.Bits())
	}
}

func TestRoundToNearestEven(t *testing.T) {
	// 1 + 2^-11 is exactly between 1.0 and the next half; ties go to even.
	f := math.Float32frombits(0x3F800000 | 1<<12)
	if got := FromFloat32(f); got.Bits() != 0x3C00 {
		t.Errorf("midpoint tie = 0x%04X, want 0x3C00", got.Bits())
	}
	// Just above the midpoint rounds up.
	f = math.Float32frombits(0x3F800000 | 1<<12 | 1)
	if got := FromFloat32(f); got.Bits() != 0x3C01 {
		t.Errorf("above midpoint = 0x%04X, want 0x3C01", got.Bits())
	}
	// Midpoint with odd low bit rounds up to even.
	f = math.Float32frombits(0x3F800000 | 1<<13 | 1<<12)
	if got := FromFloat32(f); got.Bits() != 0x3C02 {
		t.Errorf("odd tie = 0x%04X, want 0x3C02", got.Bits())
	}
}

func TestAllBitPatternsRoundTrip(t *testing.T) {
	// Every finite half converts to float32 and back unchanged.
	for bits := 0; bits < 0x10000; bits++ {
		h := FromBits(uint16(bits))
		if h.IsNaN() {
			if got := FromFloat32(h.Float32()); !got.IsNaN() {
				t.Fatalf("NaN 0x%04X round-tripped to non-NaN 0x%04X", bits, got.Bits())
			}
			continue
		}
		if got := FromFloat32(h.Float32()); got != h {
			t.Fatalf("0x%04X -> %v -> 0x%04X", bits, h.Float32(), got.Bits())
		}
	}
}

func TestAbsNeg(t *testing.T) {
	h := FromFloat32(-2.5)
	if h.Abs().Float32() != 2.5 {
		t.Errorf("Abs() = %v, want 2.5", h.Abs().Float32())
	}
	if h.Neg().Float32() != 2.5 {
		t.Errorf("Neg() = %v, want 2.5", h.Neg().Float32())
	}
}

func TestSliceConversions(t *testing.T) {
	src := []float32{0, 1, -1, 0.25, 65504}
	hs := FromFloat32Slice(src)
	back := ToFloat32Slice(hs)
	for i := range src {
		if back[i] != src[i] {
			t.Errorf("slice round-trip [%d] = %v, want %v", i, back[i], src[i])
		}
	}
}
