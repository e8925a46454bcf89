package exr

import (
	"errors"
	"testing"
)

func TestGenerateMipmapsRequiresMipmapHeader(t *testing.T) {
	img := NewImage(rgbHeader(t, 8, 8, CompressionNone))
	if _, err := GenerateMipmaps(img); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("scanline header = %v, want ErrInvalidArgument", err)
	}
}

func TestGenerateMipmapsAverages(t *testing.T) {
	h := NewTiledHeader(4, 4, 4, 4)
	if err := h.SetTiles(TileDescription{
		XSize: 4, YSize: 4, Mode: LevelModeMipmap, Rounding: RoundDown,
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.AddChannel(NewChannel("L", PixelTypeFloat)); err != nil {
		t.Fatal(err)
	}
	img := NewImage(h)
	s := img.Slice("L")
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			s.SetFloat(x, y, float32(y*4+x))
		}
	}

	levels, err := GenerateMipmaps(img)
	if err != nil {
		t.Fatalf("GenerateMipmaps: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(levels))
	}
	// Level 1 top-left is the average of samples 0, 1, 4, 5.
	if got := levels[1].Float("L", 0, 0); got != 2.5 {
		t.Errorf("level 1 (0, 0) = %g, want 2.5", got)
	}
	// Level 2 is the average of all sixteen samples.
	if got := levels[2].Float("L", 0, 0); got != 7.5 {
		t.Errorf("level 2 (0, 0) = %g, want 7.5", got)
	}
}

func TestGenerateRipmapsGrid(t *testing.T) {
	h := NewTiledHeader(8, 4, 4, 4)
	if err := h.SetTiles(TileDescription{
		XSize: 4, YSize: 4, Mode: LevelModeRipmap, Rounding: RoundDown,
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.AddChannel(NewChannel("L", PixelTypeFloat)); err != nil {
		t.Fatal(err)
	}
	img := NewImage(h)
	s := img.Slice("L")
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			s.SetFloat(x, y, 3)
		}
	}

	grid, err := GenerateRipmaps(img)
	if err != nil {
		t.Fatalf("GenerateRipmaps: %v", err)
	}
	if len(grid) != 3 || len(grid[0]) != 4 {
		t.Fatalf("grid is %dx%d, want 3 rows x 4 cols", len(grid), len(grid[0]))
	}
	// Horizontal-only reduction keeps full height.
	if w, ht := grid[0][2].Window().Width(), grid[0][2].Window().Height(); w != 2 || ht != 4 {
		t.Errorf("grid[0][2] is %dx%d, want 2x4", w, ht)
	}
	if got := grid[2][3].Float("L", 0, 0); got != 3 {
		t.Errorf("smallest level sample = %g, want 3", got)
	}
}
