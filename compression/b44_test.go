package compression

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/patrickhulce/exrio/half"
)

func TestOrderedRoundTrip(t *testing.T) {
	for i := 0; i < 1<<16; i++ {
		v := uint16(i)
		if v&0x7C00 == 0x7C00 {
			continue // Inf and NaN collapse by design of the transform
		}
		if got := unordered(ordered(v)); got != v {
			t.Fatalf("unordered(ordered(%#04x)) = %#04x", v, got)
		}
	}
	if got := ordered(half.PosInf.Bits()); got != 0x8000 {
		t.Errorf("ordered(+Inf) = %#04x, want 0x8000", got)
	}
}

func TestOrderedMonotonic(t *testing.T) {
	// Ordering must agree with numeric ordering for finite values.
	vals := []float32{-100, -1, -0.5, -0.001, 0, 0.001, 0.5, 1, 100}
	for i := 1; i < len(vals); i++ {
		a := ordered(half.FromFloat32(vals[i-1]).Bits())
		b := ordered(half.FromFloat32(vals[i]).Bits())
		if a >= b {
			t.Errorf("ordered(%v) = %#04x not below ordered(%v) = %#04x",
				vals[i-1], a, vals[i], b)
		}
	}
}

func TestPackBlockRoundTripSmallDeltas(t *testing.T) {
	// With shift 0 the running differences are exact, so blocks whose
	// neighbors differ by less than the bias reconstruct bit for bit.
	var s, got [16]uint16
	base := ordered(half.FromFloat32(0.25).Bits())
	for i := range s {
		s[i] = base + uint16(i)
	}
	var b [14]byte
	n := packBlock(&s, b[:], false, false)
	if n != 14 {
		t.Fatalf("packBlock size = %d, want 14", n)
	}
	unpackBlock14(b[:], &got)
	if got != s {
		t.Errorf("small-delta block round trip: got %v, want %v", got, s)
	}
}

func TestPackBlockFlat(t *testing.T) {
	var s, got [16]uint16
	for i := range s {
		s[i] = 0x9234
	}
	var b [14]byte
	n := packBlock(&s, b[:], true, false)
	if n != 3 {
		t.Fatalf("flat packBlock size = %d, want 3", n)
	}
	if b[2] < 13<<2 {
		t.Fatalf("flat marker byte = %#02x", b[2])
	}
	unpackBlock3(b[:], &got)
	if got != s {
		t.Errorf("flat block round trip: got %v, want %v", got, s)
	}

	// Without the flat form the same block still reconstructs exactly.
	n = packBlock(&s, b[:], false, false)
	if n != 14 {
		t.Fatalf("packBlock size = %d, want 14", n)
	}
	unpackBlock14(b[:], &got)
	if got != s {
		t.Errorf("constant 14-byte block round trip: got %v, want %v", got, s)
	}
}

func TestPackBlockExactMax(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	var s, got [16]uint16
	var b [14]byte
	for trial := 0; trial < 1000; trial++ {
		for i := range s {
			s[i] = ordered(half.FromFloat32(rng.Float32() * 100).Bits())
		}
		if packBlock(&s, b[:], false, true) != 14 {
			t.Fatal("expected a 14-byte block")
		}
		unpackBlock14(b[:], &got)

		var sMax, gMax uint16
		for i := range s {
			if s[i] > sMax {
				sMax = s[i]
			}
			if got[i] > gMax {
				gMax = got[i]
			}
		}
		if gMax != sMax {
			t.Fatalf("trial %d: block max %#04x reconstructed as %#04x", trial, sMax, gMax)
		}
	}
}

func TestB44GradientExact(t *testing.T) {
	shape := ChunkShape{
		Width:  16,
		Height: 16,
		Channels: []ChannelDesc{
			{Name: "G", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	// Adjacent samples one ulp apart keep every block at shift 0.
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromBits(half.FromFloat32(0.5).Bits() + uint16(x+y))
	})

	for _, id := range []int{IDB44, IDB44A} {
		c, _ := ForID(id)
		comp, err := c.Compress(src, shape)
		if err != nil {
			t.Fatalf("codec %d Compress error: %v", id, err)
		}
		got, err := c.Decompress(comp, shape)
		if err != nil {
			t.Fatalf("codec %d Decompress error: %v", id, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("codec %d altered a gradient block", id)
		}
	}
}

func TestB44AFlatChunkSmaller(t *testing.T) {
	shape := ChunkShape{
		Width:  32,
		Height: 32,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "Z", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(0.5)
	})

	b44, _ := ForID(IDB44)
	b44a, _ := ForID(IDB44A)
	full, err := b44.Compress(src, shape)
	if err != nil {
		t.Fatalf("b44 Compress error: %v", err)
	}
	flat, err := b44a.Compress(src, shape)
	if err != nil {
		t.Fatalf("b44a Compress error: %v", err)
	}
	if len(flat) >= len(full) {
		t.Errorf("b44a flat chunk is %d bytes, b44 %d; want smaller", len(flat), len(full))
	}

	got, err := b44a.Decompress(flat, shape)
	if err != nil {
		t.Fatalf("b44a Decompress error: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("b44a altered a flat chunk")
	}
}

func TestB44NonHalfChannelsExact(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shape := ChunkShape{
		Width:  9,
		Height: 7,
		Channels: []ChannelDesc{
			{Name: "Z", Type: SampleFloat, XSampling: 1, YSampling: 1},
			{Name: "id", Type: SampleUint, XSampling: 1, YSampling: 1},
		},
	}
	src := make([]byte, shape.RawSize())
	rng.Read(src)

	c, _ := ForID(IDB44)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("b44 altered UINT or FLOAT samples")
	}
}

func TestB44RandomDecodes(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	shape := ChunkShape{
		Width:  13,
		Height: 11,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(rng.Float32())
	})

	for _, id := range []int{IDB44, IDB44A} {
		c, _ := ForID(id)
		comp, err := c.Compress(src, shape)
		if err != nil {
			t.Fatalf("codec %d Compress error: %v", id, err)
		}
		got, err := c.Decompress(comp, shape)
		if err != nil {
			t.Fatalf("codec %d Decompress error: %v", id, err)
		}
		if len(got) != len(src) {
			t.Fatalf("codec %d output %d bytes, want %d", id, len(got), len(src))
		}
		// Quantization error is bounded by the block's dynamic range.
		for i := 0; i < len(got); i += 2 {
			h := half.FromBits(uint16(got[i]) | uint16(got[i+1])<<8)
			f := h.Float32()
			if math.IsNaN(float64(f)) || f < -1 || f > 2 {
				t.Fatalf("codec %d sample %d decoded to %v", id, i/2, f)
			}
		}
	}
}

func TestB44Truncated(t *testing.T) {
	shape := rgbaHalfShape(8, 8)
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(float32(x) / 8)
	})
	c, _ := ForID(IDB44)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if _, err := c.Decompress(comp[:len(comp)/2], shape); err == nil {
		t.Error("Decompress(truncated) = nil error, want failure")
	}
}
