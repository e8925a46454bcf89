package compression

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

func TestFloat24Conversion(t *testing.T) {
	tests := []struct {
		in   float32
		want float32
	}{
		{0, 0},
		{1, 1},
		{-1, -1},
		{0.5, 0.5},
		{float32(math.Inf(1)), float32(math.Inf(1))},
		{float32(math.Inf(-1)), float32(math.Inf(-1))},
	}
	for _, tt := range tests {
		got := math.Float32frombits(fromFloat24(toFloat24(math.Float32bits(tt.in))))
		if got != tt.want {
			t.Errorf("float24 round trip of %v = %v, want %v", tt.in, got, tt.want)
		}
	}

	nan := toFloat24(math.Float32bits(float32(math.NaN())))
	back := math.Float32frombits(fromFloat24(nan))
	if !math.IsNaN(float64(back)) {
		t.Errorf("float24 round trip of NaN = %v, want NaN", back)
	}
}

func TestFloat24RelativeError(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 10000; i++ {
		v := (rng.Float32() - 0.5) * 1e6
		got := math.Float32frombits(fromFloat24(toFloat24(math.Float32bits(v))))
		if v == 0 {
			continue
		}
		rel := math.Abs(float64(got-v) / float64(v))
		if rel > 1.0/(1<<15) {
			t.Fatalf("float24(%v) = %v, relative error %v", v, got, rel)
		}
	}
}

func TestPXR24HalfAndUintExact(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	shape := ChunkShape{
		Width:  19,
		Height: 16,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "id", Type: SampleUint, XSampling: 1, YSampling: 1},
		},
	}
	src := make([]byte, shape.RawSize())
	rng.Read(src)

	c, _ := ForID(IDPXR24)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("pxr24 altered HALF or UINT samples")
	}
}

func TestPXR24FloatBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	shape := ChunkShape{
		Width:  16,
		Height: 16,
		Channels: []ChannelDesc{
			{Name: "Z", Type: SampleFloat, XSampling: 1, YSampling: 1},
		},
	}
	src := make([]byte, shape.RawSize())
	for i := 0; i < len(src); i += 4 {
		binary.LittleEndian.PutUint32(src[i:], math.Float32bits(rng.Float32()*100))
	}

	c, _ := ForID(IDPXR24)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}

	for i := 0; i < len(src); i += 4 {
		want := math.Float32frombits(binary.LittleEndian.Uint32(src[i:]))
		have := math.Float32frombits(binary.LittleEndian.Uint32(got[i:]))
		if want == 0 {
			if have != 0 {
				t.Fatalf("sample %d: %v, want 0", i/4, have)
			}
			continue
		}
		rel := math.Abs(float64(have-want) / float64(want))
		if rel > 1.0/(1<<15) {
			t.Fatalf("sample %d: %v, want %v (relative error %v)", i/4, have, want, rel)
		}
	}
}
