package exr

import (
	"math"
	"testing"
)

// seekBuffer is an in-memory io.WriteSeeker for writer tests.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + int64(len(p)); need > int64(len(b.data)) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += int64(len(p))
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		b.pos = offset
	case 1:
		b.pos += offset
	case 2:
		b.pos = int64(len(b.data)) + offset
	}
	return b.pos, nil
}

// rgbHeader returns a width x height header with FLOAT R, G, B channels.
func rgbHeader(t *testing.T, width, height int, c Compression) *Header {
	t.Helper()
	h := NewHeader(width, height)
	if err := h.SetCompression(c); err != nil {
		t.Fatalf("SetCompression(%v): %v", c, err)
	}
	for _, name := range []string{"R", "G", "B"} {
		if err := h.AddChannel(NewChannel(name, PixelTypeFloat)); err != nil {
			t.Fatalf("AddChannel(%q): %v", name, err)
		}
	}
	return h
}

// gradient fills every channel of img with a value derived from the
// pixel position and channel index, distinct across all three axes.
func gradient(img *Image) {
	win := img.Window()
	for c, name := range img.ChannelNames() {
		s := img.Slice(name)
		for y := int(win.Min.Y); y <= int(win.Max.Y); y++ {
			for x := int(win.Min.X); x <= int(win.Max.X); x++ {
				s.SetFloat(x, y, float32(c*1000+(y-int(win.Min.Y))*100+(x-int(win.Min.X))))
			}
		}
	}
}

// sameImage compares every sample of two images exactly.
func sameImage(t *testing.T, want, got *Image) {
	t.Helper()
	ww, gw := want.Window(), got.Window()
	if ww != gw {
		t.Fatalf("window = %+v, want %+v", gw, ww)
	}
	for _, name := range want.ChannelNames() {
		ws, gs := want.Slice(name), got.Slice(name)
		if gs == nil {
			t.Fatalf("channel %q missing from decoded image", name)
		}
		for y := int(ww.Min.Y); y <= int(ww.Max.Y); y++ {
			for x := int(ww.Min.X); x <= int(ww.Max.X); x++ {
				w, g := ws.Float(x, y), gs.Float(x, y)
				if w != g && !(math.IsNaN(float64(w)) && math.IsNaN(float64(g))) {
					t.Fatalf("channel %q at (%d, %d) = %g, want %g", name, x, y, g, w)
				}
			}
		}
	}
}

// encodeToBytes writes img to an in-memory file.
func encodeToBytes(t *testing.T, img *Image) []byte {
	t.Helper()
	var buf seekBuffer
	if err := EncodeImage(&buf, img); err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	return buf.data
}
