package exr

import (
	"sort"
	"strings"

	"github.com/patrickhulce/exrio/internal/xdr"
)

// PixelType identifies the sample type of a channel.
type PixelType int32

const (
	PixelTypeUint  PixelType = 0 // 32-bit unsigned integer
	PixelTypeHalf  PixelType = 1 // 16-bit IEEE 754 half
	PixelTypeFloat PixelType = 2 // 32-bit IEEE 754 float
)

// Size returns the sample size in bytes, or 0 for an unknown type.
func (t PixelType) Size() int {
	switch t {
	case PixelTypeHalf:
		return 2
	case PixelTypeFloat, PixelTypeUint:
		return 4
	}
	return 0
}

func (t PixelType) String() string {
	switch t {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	}
	return "unknown"
}

// Channel describes one image channel.
type Channel struct {
	Name      string
	Type      PixelType
	XSampling int32
	YSampling int32
	// PLinear records whether the channel holds perceptually linear data;
	// lossy codecs quantize such channels in a log-like domain.
	PLinear bool
}

// NewChannel returns a channel with unit sampling.
func NewChannel(name string, t PixelType) Channel {
	return Channel{Name: name, Type: t, XSampling: 1, YSampling: 1}
}

// Layer returns the dot-separated layer prefix of the channel name, or ""
// for a base-layer channel.
func (ch Channel) Layer() string {
	if i := strings.LastIndexByte(ch.Name, '.'); i >= 0 {
		return ch.Name[:i]
	}
	return ""
}

// BaseName returns the channel name with any layer prefix removed.
func (ch Channel) BaseName() string {
	if i := strings.LastIndexByte(ch.Name, '.'); i >= 0 {
		return ch.Name[i+1:]
	}
	return ch.Name
}

// ChannelList is an ordered set of channels, kept sorted by name as the
// file format requires. Names are unique.
type ChannelList struct {
	channels []Channel
}

// NewChannelList returns a list holding the given channels in sorted order.
func NewChannelList(channels ...Channel) *ChannelList {
	cl := &ChannelList{}
	for _, ch := range channels {
		cl.Insert(ch)
	}
	return cl
}

// Len returns the number of channels.
func (cl *ChannelList) Len() int {
	if cl == nil {
		return 0
	}
	return len(cl.channels)
}

// At returns the i-th channel in sorted order.
func (cl *ChannelList) At(i int) Channel {
	return cl.channels[i]
}

// Get returns the channel with the given name.
func (cl *ChannelList) Get(name string) (Channel, bool) {
	if cl == nil {
		return Channel{}, false
	}
	i := sort.Search(len(cl.channels), func(i int) bool {
		return cl.channels[i].Name >= name
	})
	if i < len(cl.channels) && cl.channels[i].Name == name {
		return cl.channels[i], true
	}
	return Channel{}, false
}

// Has reports whether a channel with the given name exists.
func (cl *ChannelList) Has(name string) bool {
	_, ok := cl.Get(name)
	return ok
}

// Insert adds a channel, replacing any existing channel of the same name.
func (cl *ChannelList) Insert(ch Channel) {
	if ch.XSampling <= 0 {
		ch.XSampling = 1
	}
	if ch.YSampling <= 0 {
		ch.YSampling = 1
	}
	i := sort.Search(len(cl.channels), func(i int) bool {
		return cl.channels[i].Name >= ch.Name
	})
	if i < len(cl.channels) && cl.channels[i].Name == ch.Name {
		cl.channels[i] = ch
		return
	}
	cl.channels = append(cl.channels, Channel{})
	copy(cl.channels[i+1:], cl.channels[i:])
	cl.channels[i] = ch
}

// Names returns the channel names in sorted order.
func (cl *ChannelList) Names() []string {
	if cl == nil {
		return nil
	}
	names := make([]string, len(cl.channels))
	for i, ch := range cl.channels {
		names[i] = ch.Name
	}
	return names
}

// Layers returns the distinct layer prefixes present in the list, sorted.
// The base layer is reported as "".
func (cl *ChannelList) Layers() []string {
	seen := map[string]bool{}
	var out []string
	for _, ch := range cl.channels {
		l := ch.Layer()
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

const maxChannelName = 255

// readChannelList reads channel records until the empty-name terminator.
func readChannelList(c *xdr.Cursor) (*ChannelList, error) {
	cl := &ChannelList{}
	for {
		name, err := c.ReadString(maxChannelName)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return cl, nil
		}
		var ch Channel
		ch.Name = name
		t, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		ch.Type = PixelType(t)
		if ch.Type.Size() == 0 {
			return nil, attrErr(AttrNameChannels, "unknown pixel type for channel "+name)
		}
		pl, err := c.ReadUint8()
		if err != nil {
			return nil, err
		}
		ch.PLinear = pl != 0
		if err := c.Skip(3); err != nil { // reserved
			return nil, err
		}
		if ch.XSampling, err = c.ReadInt32(); err != nil {
			return nil, err
		}
		if ch.YSampling, err = c.ReadInt32(); err != nil {
			return nil, err
		}
		if ch.XSampling <= 0 || ch.YSampling <= 0 {
			return nil, attrErr(AttrNameChannels, "non-positive sampling for channel "+name)
		}
		cl.Insert(ch)
	}
}

func writeChannelList(w *xdr.Buffer, cl *ChannelList) {
	for _, ch := range cl.channels {
		w.WriteString(ch.Name)
		w.WriteInt32(int32(ch.Type))
		if ch.PLinear {
			w.WriteUint8(1)
		} else {
			w.WriteUint8(0)
		}
		w.WriteZeros(3)
		w.WriteInt32(ch.XSampling)
		w.WriteInt32(ch.YSampling)
	}
	w.WriteUint8(0)
}
