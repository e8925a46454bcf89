package compression

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/rand"
	"testing"

	"github.com/patrickhulce/exrio/half"
)

func rgbaHalfShape(w, h int) ChunkShape {
	return ChunkShape{
		Width:  w,
		Height: h,
		Channels: []ChannelDesc{
			{Name: "A", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "B", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
			{Name: "G", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
			{Name: "R", Type: SampleHalf, XSampling: 1, YSampling: 1, Linear: true},
		},
	}
}

// chunkOf fills a chunk's raw bytes with half values from f, walking the
// same row-major channel-interleaved order the codecs consume.
func chunkOf(shape ChunkShape, f func(ch ChannelDesc, x, y int) half.Half) []byte {
	out := make([]byte, 0, shape.RawSize())
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			for x := 0; x < shape.RowSamples(ch); x++ {
				v := f(ch, x, y).Bits()
				out = append(out, byte(v), byte(v>>8))
			}
		}
	}
	return out
}

func TestForID(t *testing.T) {
	for id := IDNone; id <= IDHTJ2K32; id++ {
		c, err := ForID(id)
		if err != nil {
			t.Fatalf("ForID(%d) error: %v", id, err)
		}
		if c.ID() != id {
			t.Errorf("ForID(%d).ID() = %d", id, c.ID())
		}
		if !Known(id) {
			t.Errorf("Known(%d) = false, want true", id)
		}
	}
	if _, err := ForID(99); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("ForID(99) error = %v, want ErrUnknownScheme", err)
	}
	if Known(99) {
		t.Error("Known(99) = true, want false")
	}
}

func TestLinesPerChunk(t *testing.T) {
	want := map[int]int{
		IDNone: 1, IDRLE: 1, IDZIPS: 1, IDZIP: 16, IDPIZ: 32,
		IDPXR24: 16, IDB44: 32, IDB44A: 32, IDDWAA: 32, IDDWAB: 256,
		IDHTJ2K256: 256, IDHTJ2K32: 32,
	}
	for id, lines := range want {
		c, err := ForID(id)
		if err != nil {
			t.Fatalf("ForID(%d): %v", id, err)
		}
		if got := c.LinesPerChunk(); got != lines {
			t.Errorf("codec %d LinesPerChunk() = %d, want %d", id, got, lines)
		}
	}
}

func TestChunkShapeSampling(t *testing.T) {
	shape := ChunkShape{
		MinX:   0,
		MinY:   0,
		Width:  6,
		Height: 4,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "BY", Type: SampleHalf, XSampling: 2, YSampling: 2},
		},
	}

	if got := shape.RowSamples(shape.Channels[0]); got != 6 {
		t.Errorf("RowSamples(Y) = %d, want 6", got)
	}
	if got := shape.RowSamples(shape.Channels[1]); got != 3 {
		t.Errorf("RowSamples(BY) = %d, want 3", got)
	}
	if shape.RowPresent(shape.Channels[1], 1) {
		t.Error("RowPresent(BY, 1) = true, want false")
	}
	if !shape.RowPresent(shape.Channels[1], 2) {
		t.Error("RowPresent(BY, 2) = false, want true")
	}
	// Rows 0 and 2 carry 6*2 + 3*2 bytes, rows 1 and 3 only 6*2.
	if got, want := shape.RawSize(), 2*(12+6)+2*12; got != want {
		t.Errorf("RawSize() = %d, want %d", got, want)
	}
}

func TestNoneRoundTrip(t *testing.T) {
	shape := rgbaHalfShape(8, 2)
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(float32(x+y) / 16)
	})

	c, _ := ForID(IDNone)
	comp, err := c.Compress(src, shape)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	got, err := c.Decompress(comp, shape)
	if err != nil {
		t.Fatalf("Decompress error: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Error("none codec did not store bytes verbatim")
	}

	if _, err := c.Decompress(comp[:len(comp)-1], shape); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decompress(short) error = %v, want ErrMalformed", err)
	}
}

func TestLosslessRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	shape := rgbaHalfShape(32, 33)

	patterns := map[string]func(ch ChannelDesc, x, y int) half.Half{
		"zeros":    func(ch ChannelDesc, x, y int) half.Half { return 0 },
		"constant": func(ch ChannelDesc, x, y int) half.Half { return half.FromFloat32(0.5) },
		"gradient": func(ch ChannelDesc, x, y int) half.Half {
			return half.FromFloat32(float32(x+y) / 64)
		},
		"random": func(ch ChannelDesc, x, y int) half.Half {
			return half.FromBits(uint16(rng.Intn(1 << 16)))
		},
	}

	for _, id := range []int{IDNone, IDRLE, IDZIPS, IDZIP, IDPIZ} {
		c, err := ForID(id)
		if err != nil {
			t.Fatalf("ForID(%d): %v", id, err)
		}
		if !c.Lossless() {
			t.Errorf("codec %d Lossless() = false, want true", id)
		}
		for name, f := range patterns {
			src := chunkOf(shape, f)
			comp, err := c.Compress(src, shape)
			if err != nil {
				t.Fatalf("codec %d Compress(%s) error: %v", id, name, err)
			}
			got, err := c.Decompress(comp, shape)
			if err != nil {
				t.Fatalf("codec %d Decompress(%s) error: %v", id, name, err)
			}
			if !bytes.Equal(got, src) {
				t.Errorf("codec %d round trip of %s data differs", id, name)
			}
		}
	}
}

func TestLosslessRoundTripMixedTypes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	shape := ChunkShape{
		Width:  17,
		Height: 5,
		Channels: []ChannelDesc{
			{Name: "Z", Type: SampleFloat, XSampling: 1, YSampling: 1},
			{Name: "id", Type: SampleUint, XSampling: 1, YSampling: 1},
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
		},
	}
	src := make([]byte, shape.RawSize())
	rng.Read(src)

	for _, id := range []int{IDRLE, IDZIPS, IDZIP, IDPIZ} {
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
			t.Errorf("codec %d round trip of mixed-type chunk differs", id)
		}
	}
}

func TestSubsampledRoundTrip(t *testing.T) {
	shape := ChunkShape{
		Width:  12,
		Height: 8,
		Channels: []ChannelDesc{
			{Name: "Y", Type: SampleHalf, XSampling: 1, YSampling: 1},
			{Name: "BY", Type: SampleHalf, XSampling: 2, YSampling: 2},
			{Name: "RY", Type: SampleHalf, XSampling: 2, YSampling: 2},
		},
	}
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(float32(len(ch.Name)*x+y) / 32)
	})

	for _, id := range []int{IDRLE, IDZIP, IDPIZ} {
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
			t.Errorf("codec %d round trip of subsampled chunk differs", id)
		}
	}
}

// Compressing the same chunk must always produce identical bytes; readers
// hash files for caching.
func TestCompressionDeterminism(t *testing.T) {
	shape := rgbaHalfShape(16, 16)
	src := chunkOf(shape, func(ch ChannelDesc, x, y int) half.Half {
		return half.FromFloat32(float32(x*y%64) / 64)
	})

	for _, id := range []int{IDRLE, IDZIP, IDPIZ, IDPXR24, IDB44A, IDDWAA} {
		c, _ := ForID(id)
		var first [32]byte
		for i := 0; i < 5; i++ {
			comp, err := c.Compress(src, shape)
			if err != nil {
				t.Fatalf("codec %d Compress error: %v", id, err)
			}
			h := sha256.Sum256(comp)
			if i == 0 {
				first = h
			} else if h != first {
				t.Errorf("codec %d compression is not deterministic", id)
				break
			}
		}
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	shape := rgbaHalfShape(8, 8)
	garbage := bytes.Repeat([]byte{0xA5, 0x5A, 0x00, 0xFF}, 16)

	for _, id := range []int{IDZIPS, IDZIP, IDPIZ, IDDWAA, IDHTJ2K32} {
		c, _ := ForID(id)
		if _, err := c.Decompress(garbage, shape); err == nil {
			t.Errorf("codec %d Decompress(garbage) = nil error, want failure", id)
		}
	}
}

func TestEmptyChunk(t *testing.T) {
	shape := ChunkShape{Width: 0, Height: 0}
	for id := IDNone; id <= IDHTJ2K32; id++ {
		c, _ := ForID(id)
		comp, err := c.Compress(nil, shape)
		if err != nil {
			t.Fatalf("codec %d Compress(empty) error: %v", id, err)
		}
		got, err := c.Decompress(comp, shape)
		if err != nil {
			t.Fatalf("codec %d Decompress(empty) error: %v", id, err)
		}
		if len(got) != 0 {
			t.Errorf("codec %d Decompress(empty) = %d bytes, want 0", id, len(got))
		}
	}
}
