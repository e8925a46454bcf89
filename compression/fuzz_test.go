package compression

import (
	"bytes"
	"testing"
)

// FuzzRLEDecode checks the run-length decoder never panics on arbitrary
// streams.
func FuzzRLEDecode(f *testing.F) {
	f.Add([]byte{}, 0)
	f.Add([]byte{0x00, 0x41}, 1)
	f.Add([]byte{0x80, 0x41}, 129)
	f.Add([]byte{0xFF, 0x41}, 2)
	f.Add([]byte{0x7F}, 128)
	f.Add(bytes.Repeat([]byte{0xFF, 0x00}, 100), 200)

	f.Fuzz(func(t *testing.T, data []byte, size int) {
		if size < 0 || size > 1<<20 {
			return
		}
		dst := make([]byte, size)
		_ = rleDecode(data, dst)
	})
}

// FuzzRLERoundTrip checks every input survives encode/decode.
func FuzzRLERoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x41})
	f.Add(bytes.Repeat([]byte{0x42}, 1000))
	f.Add([]byte{0, 1, 2, 3, 4, 5, 6, 7})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<20 {
			return
		}
		enc := rleEncode(data)
		dst := make([]byte, len(data))
		if err := rleDecode(enc, dst); err != nil {
			t.Fatalf("decode of own encoding failed: %v", err)
		}
		if !bytes.Equal(dst, data) {
			t.Error("round trip differs")
		}
	})
}

// FuzzHufUncompress checks the entropy decoder rejects arbitrary blocks
// without panicking.
func FuzzHufUncompress(f *testing.F) {
	f.Add([]byte{}, 16)
	f.Add(make([]byte, hufTableHdr), 16)
	f.Add(hufCompress([]uint16{1, 2, 3, 1, 2, 3, 1, 1}), 8)
	f.Add(hufCompress(make([]uint16, 256)), 256)

	f.Fuzz(func(t *testing.T, data []byte, count int) {
		if count < 0 || count > 1<<16 {
			return
		}
		out := make([]uint16, count)
		_ = hufUncompress(data, out)
	})
}

// FuzzPIZDecompress checks the chunk decoder fails cleanly on corrupt
// input.
func FuzzPIZDecompress(f *testing.F) {
	shape := rgbaHalfShape(8, 8)
	src := make([]byte, shape.RawSize())
	for i := range src {
		src[i] = byte(i)
	}
	c, _ := ForID(IDPIZ)
	good, _ := c.Compress(src, shape)
	f.Add(good)
	f.Add(good[:len(good)/2])
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := c.Decompress(data, shape)
		if err == nil && len(out) != shape.RawSize() {
			t.Errorf("Decompress returned %d bytes, want %d", len(out), shape.RawSize())
		}
	})
}
