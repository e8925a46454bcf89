package compression

import (
	"errors"
	"math/rand"
	"testing"
)

func hufRoundTrip(t *testing.T, name string, syms []uint16) {
	t.Helper()
	comp := hufCompress(syms)
	got := make([]uint16, len(syms))
	if err := hufUncompress(comp, got); err != nil {
		t.Fatalf("%s: hufUncompress error: %v", name, err)
	}
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("%s: symbol %d = %d, want %d", name, i, got[i], syms[i])
		}
	}
}

func TestHufRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(20))

	single := []uint16{42}
	uniform := make([]uint16, 1000)
	for i := range uniform {
		uniform[i] = 7
	}
	random := make([]uint16, 4096)
	for i := range random {
		random[i] = uint16(rng.Intn(1 << 16))
	}
	skewed := make([]uint16, 4096)
	for i := range skewed {
		skewed[i] = uint16(rng.Intn(8))
	}
	runs := make([]uint16, 0, 2048)
	for v := uint16(0); v < 8; v++ {
		for j := 0; j < 256; j++ {
			runs = append(runs, v)
		}
	}
	ramp := make([]uint16, 60000)
	for i := range ramp {
		ramp[i] = uint16(i)
	}

	hufRoundTrip(t, "single", single)
	hufRoundTrip(t, "uniform", uniform)
	hufRoundTrip(t, "random", random)
	hufRoundTrip(t, "skewed", skewed)
	hufRoundTrip(t, "runs", runs)
	hufRoundTrip(t, "ramp", ramp)
}

func TestHufEmpty(t *testing.T) {
	if got := hufCompress(nil); got != nil {
		t.Errorf("hufCompress(nil) = %d bytes, want nil", len(got))
	}
	if err := hufUncompress(nil, nil); err != nil {
		t.Errorf("hufUncompress(nil, nil) error: %v", err)
	}
}

func TestHufRunsCompress(t *testing.T) {
	// Long runs of one symbol must cost far less than one code each.
	syms := make([]uint16, 1<<16)
	comp := hufCompress(syms)
	if len(comp) > len(syms)/16 {
		t.Errorf("all-zero block compressed to %d bytes", len(comp))
	}
	hufRoundTrip(t, "zeros", syms)
}

func TestHufUncompressMalformed(t *testing.T) {
	good := hufCompress([]uint16{1, 2, 3, 4, 5, 5, 5, 5})
	out := make([]uint16, 8)

	cases := map[string][]byte{
		"short header": good[:10],
		"empty":        {},
	}
	for name, data := range cases {
		if err := hufUncompress(data, out); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: error = %v, want ErrMalformed", name, err)
		}
	}

	// Truncating the bitstream must not panic and must fail.
	if err := hufUncompress(good[:len(good)-1], out); err == nil {
		t.Error("truncated bitstream: error = nil, want failure")
	}

	// Declaring more symbols than the stream holds must fail.
	long := make([]uint16, 10000)
	if err := hufUncompress(good, long); err == nil {
		t.Error("oversized output: error = nil, want failure")
	}
}

func TestHufCanonicalCodes(t *testing.T) {
	// Codes of the same length must be consecutive and no code may prefix
	// another.
	freq := make([]uint64, hufEncSize)
	for i := 0; i < 256; i++ {
		freq[i] = uint64(i + 1)
	}
	im, iM := hufBuildTable(freq)
	if im != 0 {
		t.Errorf("im = %d, want 0", im)
	}

	type code struct {
		c uint64
		l int
	}
	var codes []code
	for i := im; i <= iM; i++ {
		if l := hufLenOf(freq[i]); l > 0 {
			codes = append(codes, code{hufCodeOf(freq[i]), l})
		}
	}
	for i := range codes {
		for j := range codes {
			if i == j {
				continue
			}
			a, b := codes[i], codes[j]
			if a.l <= b.l && b.c>>(b.l-a.l) == a.c {
				t.Fatalf("code %d is a prefix of code %d", i, j)
			}
		}
	}
}

func TestHufPackTableRoundTrip(t *testing.T) {
	freq := make([]uint64, hufEncSize)
	for _, s := range []int{0, 3, 17, 1000, 65000} {
		freq[s] = uint64(s + 10)
	}
	im, iM := hufBuildTable(freq)
	packed := hufPackTable(freq, im, iM)

	got, err := hufUnpackTable(packed, im, iM)
	if err != nil {
		t.Fatalf("hufUnpackTable error: %v", err)
	}
	for i := im; i <= iM; i++ {
		if hufLenOf(got[i]) != hufLenOf(freq[i]) {
			t.Errorf("symbol %d: unpacked length %d, want %d",
				i, hufLenOf(got[i]), hufLenOf(freq[i]))
		}
	}
}
