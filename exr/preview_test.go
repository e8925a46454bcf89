package exr

import "testing"

func TestPreviewGamma(t *testing.T) {
	if got := previewGamma(0); got != 0 {
		t.Errorf("gamma(0) = %d, want 0", got)
	}
	if got := previewGamma(-1); got != 0 {
		t.Errorf("gamma(-1) = %d, want 0", got)
	}
	if got := previewGamma(1000); got != 255 {
		t.Errorf("gamma(1000) = %d, want 255", got)
	}
	// Mid-gray: pow(5.5555*0.18, 0.4545)*84.66 is about 84.66.
	mid := previewGamma(0.18)
	if mid < 80 || mid > 90 {
		t.Errorf("gamma(0.18) = %d, want about 85", mid)
	}
}

func TestGeneratePreviewSize(t *testing.T) {
	h := rgbHeader(t, 200, 100, CompressionNone)
	img := NewImage(h)
	gradient(img)

	p, err := GeneratePreview(img, 64, 64)
	if err != nil {
		t.Fatalf("GeneratePreview: %v", err)
	}
	// Aspect ratio preserved: 200x100 fit in 64x64 is 64x32.
	if p.Width != 64 || p.Height != 32 {
		t.Fatalf("preview is %dx%d, want 64x32", p.Width, p.Height)
	}
	if len(p.RGBA) != int(p.Width*p.Height*4) {
		t.Fatalf("RGBA length = %d, want %d", len(p.RGBA), p.Width*p.Height*4)
	}
	// Without an alpha channel the preview is opaque.
	for i := 3; i < len(p.RGBA); i += 4 {
		if p.RGBA[i] != 255 {
			t.Fatalf("alpha byte %d = %d, want 255", i, p.RGBA[i])
		}
	}
}

// TestPreviewRoundTrip stores a preview attribute and reads it back.
func TestPreviewRoundTrip(t *testing.T) {
	h := rgbHeader(t, 8, 8, CompressionNone)
	img := NewImage(h)
	gradient(img)
	p, err := GeneratePreview(img, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SetPreview(*p); err != nil {
		t.Fatal(err)
	}

	f, err := OpenBytes(encodeToBytes(t, img))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, ok := f.Header(0).Preview()
	if !ok {
		t.Fatal("preview attribute missing after round trip")
	}
	if got.Width != p.Width || got.Height != p.Height {
		t.Fatalf("preview is %dx%d, want %dx%d", got.Width, got.Height, p.Width, p.Height)
	}
	rgba := PreviewImage(&got)
	if rgba.Bounds().Dx() != int(p.Width) {
		t.Fatalf("PreviewImage width = %d", rgba.Bounds().Dx())
	}
}
