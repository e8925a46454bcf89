package compression

import (
	"math/rand"
	"testing"
)

func TestWenc14RoundTrip(t *testing.T) {
	for _, tc := range [][2]uint16{{0, 0}, {1, 0}, {0, 1}, {16383, 16383}, {16383, 0}, {5000, 12000}} {
		l, h := wenc14(tc[0], tc[1])
		a, b := wdec14(l, h)
		if a != tc[0] || b != tc[1] {
			t.Errorf("wdec14(wenc14(%d, %d)) = (%d, %d)", tc[0], tc[1], a, b)
		}
	}
}

func TestWenc16RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	for i := 0; i < 10000; i++ {
		x, y := uint16(rng.Intn(1<<16)), uint16(rng.Intn(1<<16))
		l, h := wenc16(x, y)
		a, b := wdec16(l, h)
		if a != x || b != y {
			t.Fatalf("wdec16(wenc16(%d, %d)) = (%d, %d)", x, y, a, b)
		}
	}
}

func TestWav2DRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	dims := [][2]int{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {7, 5}, {8, 8}, {16, 1}, {1, 16}, {33, 17}, {64, 64}}

	for _, maxValue := range []uint16{16383, 65535} {
		for _, d := range dims {
			nx, ny := d[0], d[1]
			data := make([]uint16, nx*ny)
			for i := range data {
				data[i] = uint16(rng.Intn(int(maxValue) + 1))
			}
			orig := make([]uint16, len(data))
			copy(orig, data)

			wav2DEncode(data, nx, 1, ny, nx, maxValue)
			wav2DDecode(data, nx, 1, ny, nx, maxValue)

			for i := range data {
				if data[i] != orig[i] {
					t.Fatalf("maxValue %d size %dx%d: sample %d = %d, want %d",
						maxValue, nx, ny, i, data[i], orig[i])
				}
			}
		}
	}
}

func TestWav2DStridedRoundTrip(t *testing.T) {
	// Interleaved two-component data transforms per component through the
	// offset arguments.
	rng := rand.New(rand.NewSource(32))
	nx, ny, size := 12, 9, 2
	data := make([]uint16, nx*ny*size)
	for i := range data {
		data[i] = uint16(rng.Intn(1 << 16))
	}
	orig := make([]uint16, len(data))
	copy(orig, data)

	for c := 0; c < size; c++ {
		wav2DEncode(data[c:], nx, size, ny, nx*size, 65535)
	}
	for c := 0; c < size; c++ {
		wav2DDecode(data[c:], nx, size, ny, nx*size, 65535)
	}

	for i := range data {
		if data[i] != orig[i] {
			t.Fatalf("sample %d = %d, want %d", i, data[i], orig[i])
		}
	}
}
