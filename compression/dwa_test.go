package compression

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/patrickhulce/exrio/half"
)

func TestDwaClassify(t *testing.T) {
	tests := []struct {
		ch   ChannelDesc
		want dwaScheme
	}{
		{ChannelDesc{Name: "R", Type: SampleHalf}, dwaLossyDCT},
		{ChannelDesc{Name: "diffuse.G", Type: SampleHalf}, dwaLossyDCT},
		{ChannelDesc{Name: "Y", Type: SampleHalf}, dwaLossyDCT},
		{ChannelDesc{Name: "BY", Type: SampleHalf}, dwaLossyDCT},
		{ChannelDesc{Name: "A", Type: SampleHalf}, dwaRLE},
		{ChannelDesc{Name: "hair.AR", Type: SampleHalf}, dwaRLE},
		{ChannelDesc{Name: "Z", Type: SampleHalf}, dwaUnknown},
		{ChannelDesc{Name: "R", Type: SampleFloat}, dwaUnknown},
		{ChannelDesc{Name: "id", Type: SampleUint}, dwaUnknown},
	}
	for _, tt := range tests {
		if got := dwaClassify(tt.ch); got != tt.want {
			t.Errorf("dwaClassify(%s %v) = %v, want %v", tt.ch.Name, tt.ch.Type, got, tt.want)
		}
	}
}

func TestCsc709Inverse(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 1000; i++ {
		r, g, b := rng.Float32(), rng.Float32(), rng.Float32()
		r2, g2, b2 := csc709Inverse(csc709Forward(r, g, b))
		const eps = 1e-3
		if math.Abs(float64(r2-r)) > eps || math.Abs(float64(g2-g)) > eps || math.Abs(float64(b2-b)) > eps {
			t.Fatalf("csc709 round trip (%v,%v,%v) = (%v,%v,%v)", r, g, b, r2, g2, b2)
		}
	}
}

func TestDCTInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	var blk, orig [64]float32
	for i := range blk {
		blk[i] = rng.Float32()*2 - 1
		orig[i] = blk[i]
	}
	dctForward8x8(&blk)
	dctInverse8x8(&blk)
	for i := range blk {
		if math.Abs(float64(blk[i]-orig[i])) > 1e-4 {
			t.Fatalf("dct round trip sample %d: %v, want %v", i, blk[i], orig[i])
		}
	}
}

func TestDCTConstantBlock(t *testing.T) {
	var blk [64]float32
	for i := range blk {
		blk[i] = 0.75
	}
	dctForward8x8(&blk)
	// A constant block is pure DC.
	if math.Abs(float64(blk[0])-8*0.75) > 1e-4 {
		t.Errorf("DC coefficient = %v, want %v", blk[0], 8*0.75)
	}
	for i := 1; i < 64; i++ {
		if math.Abs(float64(blk[i])) > 1e-4 {
			t.Errorf("AC coefficient %d = %v, want 0", i, blk[i])
		}
	}
}

func dwaShape(w, h int) ChunkShape {
	return ChunkShape{
		Width:  w,
		Height: h,
		Channels: []ChannelDesc{
			{Name: "A", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "B", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
			{Name: "G", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
			{Name: "R", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
			{Name: "Z", Type: SampleFloat, XSampling: 1, YSampling: 1},
		},
	}
}

// decodeHalvesByChannel pulls one channel's half values out of a raw
// chunk image.
func decodeHalvesByChannel(shape ChunkShape, raw []byte, name string) []float32 {
	var out []float32
	off := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			n := shape.RowSamples(ch) * ch.Type.Size()
			if ch.Name == name && ch.Type == SampleHalf {
				for x := 0; x < n; x += 2 {
					out = append(out, half.FromBits(uint16(raw[off+x])|uint16(raw[off+x+1])<<8).Float32())
				}
			}
			off += n
		}
	}
	return out
}

func TestDWARoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	shape := dwaShape(40, 32)
	src := chunkOf5(shape, rng)

	for _, id := range []int{IDDWAA, IDDWAB} {
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

		// Alpha is run-length coded and must survive exactly, as must the
		// FLOAT depth channel.
		if gotA, srcA := decodeHalvesByChannel(shape, got, "A"), decodeHalvesByChannel(shape, src, "A"); !equalFloats(gotA, srcA) {
			t.Errorf("codec %d altered the alpha channel", id)
		}

		// Color goes through the DCT; quantization error stays small for
		// data in [0, 1].
		for _, name := range []string{"R", "G", "B"} {
			gotC := decodeHalvesByChannel(shape, got, name)
			srcC := decodeHalvesByChannel(shape, src, name)
			for i := range srcC {
				if math.Abs(float64(gotC[i]-srcC[i])) > 0.25 {
					t.Fatalf("codec %d channel %s sample %d: %v, want %v",
						id, name, i, gotC[i], srcC[i])
				}
			}
		}
	}
}

// chunkOf5 builds a chunk for dwaShape: smooth color, binary alpha,
// random depth.
func chunkOf5(shape ChunkShape, rng *rand.Rand) []byte {
	out := make([]byte, 0, shape.RawSize())
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			for x := 0; x < shape.RowSamples(ch); x++ {
				switch ch.Type {
				case SampleHalf:
					var v half.Half
					if ch.Name == "A" {
						if (x/8+y/8)%2 == 0 {
							v = half.FromFloat32(1)
						}
					} else {
						v = half.FromFloat32(0.5 + 0.4*float32(math.Sin(float64(x)/7))*float32(math.Cos(float64(y)/5)))
					}
					b := v.Bits()
					out = append(out, byte(b), byte(b>>8))
				case SampleFloat:
					b := math.Float32bits(rng.Float32() * 1000)
					out = append(out, byte(b), byte(b>>8), byte(b>>16), byte(b>>24))
				}
			}
		}
	}
	return out
}

func equalFloats(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDWAUnknownChannelExact(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	shape := ChunkShape{
		Width:  24,
		Height: 32,
		Channels: []ChannelDesc{
			{Name: "Z", Type: SampleFloat, XSampling: 1, YSampling: 1},
			{Name: "id", Type: SampleUint, XSampling: 1, YSampling: 1},
			{Name: "custom", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	src := make([]byte, shape.RawSize())
	rng.Read(src)

	c, _ := ForID(IDDWAA)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("dwa altered channels outside the lossy set")
	}
}

func TestDWAConstantColorNearExact(t *testing.T) {
	shape := ChunkShape{
		Width:  16,
		Height: 16,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(0.25)
	})

	c, _ := ForID(IDDWAA)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	for i := 0; i < len(got); i += 2 {
		f := half.FromBits(uint16(got[i]) | uint16(got[i+1])<<8).Float32()
		if math.Abs(float64(f)-0.25) > 1e-3 {
			t.Fatalf("sample %d = %v, want 0.25", i/2, f)
		}
	}
}

func TestDWATruncated(t *testing.T) {
	shape := dwaShape(16, 16)
	rng := rand.New(rand.NewSource(13))
	src := chunkOf5(shape, rng)

	c, _ := ForID(IDDWAA)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	for _, n := range []int{0, 8, dwaHeaderSize, len(comp) / 2} {
		if _, err := c.Decompress(comp[:n], shape); err == nil {
			t.Errorf("Decompress(%d bytes) = nil error, want failure", n)
		}
	}
}
