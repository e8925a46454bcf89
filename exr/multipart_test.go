package exr

import (
	"testing"
)

// TestMultiPartRoundTrip writes a two-part file with distinct channel
// sets and verifies each part decodes in isolation.
func TestMultiPartRoundTrip(t *testing.T) {
	color := rgbHeader(t, 8, 8, CompressionZIP)
	if err := color.SetName("color"); err != nil {
		t.Fatal(err)
	}

	depth := NewHeader(8, 8)
	if err := depth.SetName("depth"); err != nil {
		t.Fatal(err)
	}
	if err := depth.SetCompression(CompressionZIPS); err != nil {
		t.Fatal(err)
	}
	if err := depth.AddChannel(NewChannel("Z", PixelTypeFloat)); err != nil {
		t.Fatal(err)
	}

	colorImg := NewImage(color)
	gradient(colorImg)
	depthImg := NewImage(depth)
	z := depthImg.Slice("Z")
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			z.SetFloat(x, y, float32(1000+x*y))
		}
	}

	var buf seekBuffer
	if err := EncodeImages(&buf, []*Image{colorImg, depthImg}); err != nil {
		t.Fatalf("EncodeImages: %v", err)
	}

	f, err := OpenBytes(buf.data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer f.Close()

	if !f.IsMultiPart() {
		t.Fatal("file is not multi-part")
	}
	if got := f.NumParts(); got != 2 {
		t.Fatalf("NumParts = %d, want 2", got)
	}
	if got := PartNames(f); got[0] != "color" || got[1] != "depth" {
		t.Fatalf("PartNames = %v", got)
	}

	// Each part must carry only its own channels.
	if names := f.Header(0).Channels().Names(); len(names) != 3 {
		t.Fatalf("part 0 channels = %v, want R G B", names)
	}
	if names := f.Header(1).Channels().Names(); len(names) != 1 || names[0] != "Z" {
		t.Fatalf("part 1 channels = %v, want [Z]", names)
	}

	gotColor, err := DecodeImagePart(f, 0)
	if err != nil {
		t.Fatalf("DecodeImagePart(0): %v", err)
	}
	sameImage(t, colorImg, gotColor)

	gotDepth, err := DecodeImagePart(f, 1)
	if err != nil {
		t.Fatalf("DecodeImagePart(1): %v", err)
	}
	sameImage(t, depthImg, gotDepth)
	if gotDepth.Slice("R") != nil {
		t.Fatal("part 1 decoded a channel belonging to part 0")
	}

	idx, err := FindPart(f, "depth")
	if err != nil || idx != 1 {
		t.Fatalf("FindPart(depth) = %d, %v, want 1", idx, err)
	}
	if _, err := FindPart(f, "normals"); err == nil {
		t.Fatal("FindPart of a missing part succeeded")
	}
}

// TestMultiPartMixedKinds combines a scanline part with a tiled part.
func TestMultiPartMixedKinds(t *testing.T) {
	scan := rgbHeader(t, 16, 16, CompressionNone)
	if err := scan.SetName("beauty"); err != nil {
		t.Fatal(err)
	}

	tiled := NewTiledHeader(16, 16, 8, 8)
	if err := tiled.SetName("mask"); err != nil {
		t.Fatal(err)
	}
	if err := tiled.SetCompression(CompressionRLE); err != nil {
		t.Fatal(err)
	}
	if err := tiled.AddChannel(NewChannel("M", PixelTypeHalf)); err != nil {
		t.Fatal(err)
	}

	scanImg := NewImage(scan)
	gradient(scanImg)
	tiledImg := NewImage(tiled)
	m := tiledImg.Slice("M")
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			m.SetFloat(x, y, float32(x%2))
		}
	}

	var buf seekBuffer
	if err := EncodeImages(&buf, []*Image{scanImg, tiledImg}); err != nil {
		t.Fatalf("EncodeImages: %v", err)
	}
	f, err := OpenBytes(buf.data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	defer f.Close()

	if f.Header(0).IsTiled() || !f.Header(1).IsTiled() {
		t.Fatal("part kinds did not survive the round trip")
	}
	got, err := DecodeImagePart(f, 1)
	if err != nil {
		t.Fatalf("DecodeImagePart(1): %v", err)
	}
	sameImage(t, tiledImg, got)
}
