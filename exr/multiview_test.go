package exr

import "testing"

func TestViewFromChannelName(t *testing.T) {
	views := []string{"left", "right"}
	tests := []struct {
		channel string
		want    string
	}{
		{"R", "left"},
		{"left.R", "left"},
		{"right.R", "right"},
		{"diffuse.right.G", "right"},
		{"diffuse.G", "left"}, // layer name, not a view
	}
	for _, tt := range tests {
		if got := ViewFromChannelName(tt.channel, views); got != tt.want {
			t.Errorf("ViewFromChannelName(%q) = %q, want %q", tt.channel, got, tt.want)
		}
	}
}

func TestChannelsInView(t *testing.T) {
	views := []string{"left", "right"}
	cl := NewChannelList(
		NewChannel("R", PixelTypeHalf),
		NewChannel("right.R", PixelTypeHalf),
		NewChannel("right.G", PixelTypeHalf),
		NewChannel("G", PixelTypeHalf),
	)
	left := ChannelsInView(cl, "left", views)
	if len(left) != 2 || left[0] != "G" || left[1] != "R" {
		t.Errorf("left channels = %v, want [G R]", left)
	}
	right := ChannelsInView(cl, "right", views)
	if len(right) != 2 || right[0] != "right.G" || right[1] != "right.R" {
		t.Errorf("right channels = %v, want [right.G right.R]", right)
	}
}

func TestStripViewFromChannelName(t *testing.T) {
	tests := []struct {
		channel, view, want string
	}{
		{"right.R", "right", "R"},
		{"diffuse.right.G", "right", "diffuse.G"},
		{"R", "right", "R"},
		{"left.R", "right", "left.R"},
	}
	for _, tt := range tests {
		if got := StripViewFromChannelName(tt.channel, tt.view); got != tt.want {
			t.Errorf("StripViewFromChannelName(%q, %q) = %q, want %q",
				tt.channel, tt.view, got, tt.want)
		}
	}
}

// TestMultiViewAttribute round-trips the multiView attribute through a
// file.
func TestMultiViewAttribute(t *testing.T) {
	h := rgbHeader(t, 4, 4, CompressionNone)
	if err := h.SetMultiView([]string{"left", "right"}); err != nil {
		t.Fatal(err)
	}
	img := NewImage(h)
	gradient(img)

	f, err := OpenBytes(encodeToBytes(t, img))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	views := f.Header(0).MultiView()
	if len(views) != 2 || views[0] != "left" {
		t.Fatalf("MultiView = %v", views)
	}
	if got := DefaultView(views); got != "left" {
		t.Fatalf("DefaultView = %q, want left", got)
	}
}
