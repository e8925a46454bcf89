package exr

import (
	"fmt"

	"github.com/patrickhulce/exrio/internal/xdr"
)

// Names of the attributes this package reads and writes by accessor.
const (
	AttrNameChannels           = "channels"
	AttrNameCompression        = "compression"
	AttrNameDataWindow         = "dataWindow"
	AttrNameDisplayWindow      = "displayWindow"
	AttrNameLineOrder          = "lineOrder"
	AttrNamePixelAspectRatio   = "pixelAspectRatio"
	AttrNameScreenWindowCenter = "screenWindowCenter"
	AttrNameScreenWindowWidth  = "screenWindowWidth"
	AttrNameTiles              = "tiles"
	AttrNameName               = "name"
	AttrNameType               = "type"
	AttrNameVersion            = "version"
	AttrNameChunkCount         = "chunkCount"
	AttrNameView               = "view"
	AttrNameMultiView          = "multiView"
	AttrNamePreview            = "preview"
	AttrNameEnvmap             = "envmap"
	AttrNameChromaticities     = "chromaticities"
	AttrNameDWALevel           = "dwaCompressionLevel"
	AttrNameZipLevel           = "zipCompressionLevel"
)

// Part type attribute values.
const (
	PartTypeScanline     = "scanlineimage"
	PartTypeTiled        = "tiledimage"
	PartTypeDeepScanline = "deepscanline"
	PartTypeDeepTiled    = "deeptile"
)

// DefaultDWACompressionLevel is the DWA quantization level used when the
// header carries no dwaCompressionLevel attribute.
const DefaultDWACompressionLevel = float32(45.0)

// requiredAttrOrder is the canonical serialization order for the mandatory
// attributes plus the well-known structural ones. Attributes in this list
// are emitted first, in this order; all other attributes follow in their
// insertion order.
var requiredAttrOrder = []string{
	AttrNameChannels,
	AttrNameCompression,
	AttrNameDataWindow,
	AttrNameDisplayWindow,
	AttrNameLineOrder,
	AttrNamePixelAspectRatio,
	AttrNameScreenWindowCenter,
	AttrNameScreenWindowWidth,
	AttrNameTiles,
	AttrNameName,
	AttrNameType,
	AttrNameVersion,
	AttrNameChunkCount,
}

// requiredAttrs is the mandatory subset every part must carry.
var requiredAttrs = []string{
	AttrNameChannels,
	AttrNameCompression,
	AttrNameDataWindow,
	AttrNameDisplayWindow,
	AttrNameLineOrder,
	AttrNamePixelAspectRatio,
	AttrNameScreenWindowCenter,
	AttrNameScreenWindowWidth,
}

// Header is the ordered attribute collection of one part. Attributes keep
// their insertion order; serialization emits the mandatory set first in a
// canonical order, then the rest in insertion order. A header freezes once
// the first chunk of its part has been written; further mutations fail with
// ErrHeaderFrozen.
type Header struct {
	attrs  []*Attribute
	index  map[string]*Attribute
	frozen bool
}

// NewHeader returns a scanline header for a width x height image with the
// display and data windows at the origin and the usual defaults (increasing
// line order, ZIP compression, square pixels). Channels start empty.
func NewHeader(width, height int) *Header {
	h := &Header{index: map[string]*Attribute{}}
	win := Box2i{Max: V2i{int32(width) - 1, int32(height) - 1}}
	h.mustSet(AttrNameChannels, TypeChlist, NewChannelList())
	h.mustSet(AttrNameCompression, TypeCompression, CompressionZIP)
	h.mustSet(AttrNameDataWindow, TypeBox2i, win)
	h.mustSet(AttrNameDisplayWindow, TypeBox2i, win)
	h.mustSet(AttrNameLineOrder, TypeLineOrder, LineOrderIncreasingY)
	h.mustSet(AttrNamePixelAspectRatio, TypeFloat, float32(1))
	h.mustSet(AttrNameScreenWindowCenter, TypeV2f, V2f{})
	h.mustSet(AttrNameScreenWindowWidth, TypeFloat, float32(1))
	return h
}

// Len returns the number of attributes.
func (h *Header) Len() int {
	return len(h.attrs)
}

// At returns the i-th attribute in insertion order.
func (h *Header) At(i int) *Attribute {
	return h.attrs[i]
}

// Get returns the named attribute, or nil.
func (h *Header) Get(name string) *Attribute {
	return h.index[name]
}

// Has reports whether the named attribute exists.
func (h *Header) Has(name string) bool {
	return h.index[name] != nil
}

// Set adds or replaces an attribute. Replacement keeps the attribute's
// position; a new attribute appends.
func (h *Header) Set(name string, typ AttributeType, value any) error {
	if h.frozen {
		return fmt.Errorf("%w: cannot set %q", ErrHeaderFrozen, name)
	}
	if h.index == nil {
		h.index = map[string]*Attribute{}
	}
	if a := h.index[name]; a != nil {
		a.Type = typ
		a.Value = value
		return nil
	}
	a := &Attribute{Name: name, Type: typ, Value: value}
	h.attrs = append(h.attrs, a)
	h.index[name] = a
	return nil
}

func (h *Header) mustSet(name string, typ AttributeType, value any) {
	if err := h.Set(name, typ, value); err != nil {
		panic(err)
	}
}

// Delete removes an attribute if present.
func (h *Header) Delete(name string) error {
	if h.frozen {
		return fmt.Errorf("%w: cannot delete %q", ErrHeaderFrozen, name)
	}
	if h.index[name] == nil {
		return nil
	}
	delete(h.index, name)
	for i, a := range h.attrs {
		if a.Name == name {
			h.attrs = append(h.attrs[:i], h.attrs[i+1:]...)
			break
		}
	}
	return nil
}

// Frozen reports whether the header still accepts mutations.
func (h *Header) Frozen() bool {
	return h.frozen
}

func (h *Header) freeze() {
	h.frozen = true
}

// Clone returns a deep-enough copy that is independently mutable. Attribute
// values are shared except the channel list, which callers mutate through
// SetChannels.
func (h *Header) Clone() *Header {
	c := &Header{index: map[string]*Attribute{}, attrs: make([]*Attribute, 0, len(h.attrs))}
	for _, a := range h.attrs {
		na := &Attribute{Name: a.Name, Type: a.Type, Value: a.Value}
		c.attrs = append(c.attrs, na)
		c.index[a.Name] = na
	}
	return c
}

// Channels returns the channel list, or nil if absent.
func (h *Header) Channels() *ChannelList {
	if a := h.Get(AttrNameChannels); a != nil {
		if cl, ok := a.Value.(*ChannelList); ok {
			return cl
		}
	}
	return nil
}

// SetChannels replaces the channel list.
func (h *Header) SetChannels(cl *ChannelList) error {
	return h.Set(AttrNameChannels, TypeChlist, cl)
}

// AddChannel inserts one channel into the channel list.
func (h *Header) AddChannel(ch Channel) error {
	if h.frozen {
		return fmt.Errorf("%w: cannot add channel %q", ErrHeaderFrozen, ch.Name)
	}
	cl := h.Channels()
	if cl == nil {
		cl = NewChannelList()
		if err := h.SetChannels(cl); err != nil {
			return err
		}
	}
	cl.Insert(ch)
	return nil
}

// Compression returns the compression attribute, defaulting to none.
func (h *Header) Compression() Compression {
	if a := h.Get(AttrNameCompression); a != nil {
		if c, ok := a.Value.(Compression); ok {
			return c
		}
	}
	return CompressionNone
}

// SetCompression sets the compression attribute.
func (h *Header) SetCompression(c Compression) error {
	return h.Set(AttrNameCompression, TypeCompression, c)
}

// DataWindow returns the data window.
func (h *Header) DataWindow() Box2i {
	if a := h.Get(AttrNameDataWindow); a != nil {
		if b, ok := a.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDataWindow sets the data window.
func (h *Header) SetDataWindow(b Box2i) error {
	return h.Set(AttrNameDataWindow, TypeBox2i, b)
}

// DisplayWindow returns the display window.
func (h *Header) DisplayWindow() Box2i {
	if a := h.Get(AttrNameDisplayWindow); a != nil {
		if b, ok := a.Value.(Box2i); ok {
			return b
		}
	}
	return Box2i{}
}

// SetDisplayWindow sets the display window.
func (h *Header) SetDisplayWindow(b Box2i) error {
	return h.Set(AttrNameDisplayWindow, TypeBox2i, b)
}

// LineOrder returns the line order attribute, defaulting to increasing Y.
func (h *Header) LineOrder() LineOrder {
	if a := h.Get(AttrNameLineOrder); a != nil {
		if o, ok := a.Value.(LineOrder); ok {
			return o
		}
	}
	return LineOrderIncreasingY
}

// SetLineOrder sets the line order attribute.
func (h *Header) SetLineOrder(o LineOrder) error {
	return h.Set(AttrNameLineOrder, TypeLineOrder, o)
}

// PixelAspectRatio returns the pixel aspect ratio, defaulting to 1.
func (h *Header) PixelAspectRatio() float32 {
	if a := h.Get(AttrNamePixelAspectRatio); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
	}
	return 1
}

// ScreenWindowCenter returns the screen window center.
func (h *Header) ScreenWindowCenter() V2f {
	if a := h.Get(AttrNameScreenWindowCenter); a != nil {
		if v, ok := a.Value.(V2f); ok {
			return v
		}
	}
	return V2f{}
}

// ScreenWindowWidth returns the screen window width, defaulting to 1.
func (h *Header) ScreenWindowWidth() float32 {
	if a := h.Get(AttrNameScreenWindowWidth); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
	}
	return 1
}

// Tiles returns the tile description if the header carries one.
func (h *Header) Tiles() (TileDescription, bool) {
	if a := h.Get(AttrNameTiles); a != nil {
		if td, ok := a.Value.(TileDescription); ok {
			return td, true
		}
	}
	return TileDescription{}, false
}

// SetTiles sets the tile description and marks the part tiled.
func (h *Header) SetTiles(td TileDescription) error {
	return h.Set(AttrNameTiles, TypeTileDesc, td)
}

// IsTiled reports whether this part stores tiles rather than scanlines.
func (h *Header) IsTiled() bool {
	if _, ok := h.Tiles(); ok {
		t := h.PartType()
		return t == "" || t == PartTypeTiled || t == PartTypeDeepTiled
	}
	return false
}

// IsDeep reports whether this part declares deep data.
func (h *Header) IsDeep() bool {
	t := h.PartType()
	return t == PartTypeDeepScanline || t == PartTypeDeepTiled
}

// Name returns the part name attribute, or "".
func (h *Header) Name() string {
	if a := h.Get(AttrNameName); a != nil {
		if s, ok := a.Value.(string); ok {
			return s
		}
	}
	return ""
}

// SetName sets the part name attribute.
func (h *Header) SetName(name string) error {
	return h.Set(AttrNameName, TypeString, name)
}

// PartType returns the part type attribute, or "".
func (h *Header) PartType() string {
	if a := h.Get(AttrNameType); a != nil {
		if s, ok := a.Value.(string); ok {
			return s
		}
	}
	return ""
}

// SetPartType sets the part type attribute.
func (h *Header) SetPartType(t string) error {
	return h.Set(AttrNameType, TypeString, t)
}

// ChunkCount returns the chunkCount attribute, or -1 if absent.
func (h *Header) ChunkCount() int {
	if a := h.Get(AttrNameChunkCount); a != nil {
		if n, ok := a.Value.(int32); ok {
			return int(n)
		}
	}
	return -1
}

// View returns the view attribute, or "".
func (h *Header) View() string {
	if a := h.Get(AttrNameView); a != nil {
		if s, ok := a.Value.(string); ok {
			return s
		}
	}
	return ""
}

// MultiView returns the multiView attribute, or nil.
func (h *Header) MultiView() []string {
	if a := h.Get(AttrNameMultiView); a != nil {
		if ss, ok := a.Value.([]string); ok {
			return ss
		}
	}
	return nil
}

// SetMultiView sets the multiView string vector.
func (h *Header) SetMultiView(views []string) error {
	return h.Set(AttrNameMultiView, TypeStringVector, views)
}

// Preview returns the preview thumbnail if present.
func (h *Header) Preview() (Preview, bool) {
	if a := h.Get(AttrNamePreview); a != nil {
		if p, ok := a.Value.(Preview); ok {
			return p, true
		}
	}
	return Preview{}, false
}

// SetPreview sets the preview thumbnail attribute.
func (h *Header) SetPreview(p Preview) error {
	return h.Set(AttrNamePreview, TypePreview, p)
}

// DWACompressionLevel returns the DWA quantization level for this part.
func (h *Header) DWACompressionLevel() float32 {
	if a := h.Get(AttrNameDWALevel); a != nil {
		if f, ok := a.Value.(float32); ok {
			return f
		}
		if f, ok := a.Value.(float64); ok {
			return float32(f)
		}
	}
	return DefaultDWACompressionLevel
}

// SetDWACompressionLevel sets the DWA quantization level attribute.
func (h *Header) SetDWACompressionLevel(level float32) error {
	return h.Set(AttrNameDWALevel, TypeFloat, level)
}

// ZipCompressionLevel returns the requested deflate level, or 0 for the
// codec default.
func (h *Header) ZipCompressionLevel() int {
	if a := h.Get(AttrNameZipLevel); a != nil {
		if n, ok := a.Value.(int32); ok {
			return int(n)
		}
	}
	return 0
}

// SetZipCompressionLevel sets the deflate level attribute.
func (h *Header) SetZipCompressionLevel(level int) error {
	return h.Set(AttrNameZipLevel, TypeInt, int32(level))
}

// Validate checks that the mandatory attribute set is present and internally
// consistent for a part of the given multi-part status.
func (h *Header) Validate(multiPart bool) error {
	for _, name := range requiredAttrs {
		if !h.Has(name) {
			return fmt.Errorf("%w: %q", ErrMissingRequiredAttribute, name)
		}
	}
	if multiPart {
		for _, name := range []string{AttrNameName, AttrNameType, AttrNameChunkCount} {
			if !h.Has(name) {
				return fmt.Errorf("%w: %q (multi-part)", ErrMissingRequiredAttribute, name)
			}
		}
	}
	dw := h.DataWindow()
	if dw.Empty() {
		return fmt.Errorf("%w: dataWindow: empty data window", ErrMalformedAttribute)
	}
	cl := h.Channels()
	if cl.Len() == 0 {
		return fmt.Errorf("%w: channels: no channels", ErrMalformedAttribute)
	}
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		xs, ys := int(ch.XSampling), int(ch.YSampling)
		if xs > 1 && (int(dw.Min.X)%xs != 0 || dw.Width()%xs != 0) {
			return attrErr(AttrNameChannels, fmt.Sprintf("x sampling %d of channel %q does not divide the data window", xs, ch.Name))
		}
		if ys > 1 && (int(dw.Min.Y)%ys != 0 || dw.Height()%ys != 0) {
			return attrErr(AttrNameChannels, fmt.Sprintf("y sampling %d of channel %q does not divide the data window", ys, ch.Name))
		}
	}
	if !h.Compression().Known() {
		return fmt.Errorf("%w: compression id %d", ErrUnsupportedFormat, int(h.Compression()))
	}
	t := h.PartType()
	if t == PartTypeTiled || t == PartTypeDeepTiled {
		if _, ok := h.Tiles(); !ok {
			return fmt.Errorf("%w: %q (tiled part)", ErrMissingRequiredAttribute, AttrNameTiles)
		}
	}
	if td, ok := h.Tiles(); ok {
		if td.XSize == 0 || td.YSize == 0 {
			return attrErr(AttrNameTiles, "zero tile size")
		}
	}
	return nil
}

// readHeader reads attributes until the terminator. A header that ends
// immediately (bare terminator) is reported as nil, which ends the header
// sequence of a multi-part file.
func readHeader(c *xdr.Cursor) (*Header, error) {
	h := &Header{index: map[string]*Attribute{}}
	for {
		attr, err := readAttribute(c)
		if err != nil {
			return nil, err
		}
		if attr == nil {
			if len(h.attrs) == 0 {
				return nil, nil
			}
			return h, nil
		}
		if h.index[attr.Name] != nil {
			return nil, attrErr(attr.Name, "duplicate attribute")
		}
		h.attrs = append(h.attrs, attr)
		h.index[attr.Name] = attr
	}
}

// writeTo serializes the header followed by its terminator.
func (h *Header) writeTo(w *xdr.Buffer) error {
	emitted := map[string]bool{}
	for _, name := range requiredAttrOrder {
		if a := h.index[name]; a != nil {
			if err := writeAttribute(w, a); err != nil {
				return err
			}
			emitted[name] = true
		}
	}
	for _, a := range h.attrs {
		if emitted[a.Name] {
			continue
		}
		if err := writeAttribute(w, a); err != nil {
			return err
		}
	}
	w.WriteUint8(0)
	return nil
}

// levelCount returns the number of resolution levels spanning size.
func levelCount(size int, rounding LevelRoundingMode) int {
	n := 1
	for size > 1 {
		if rounding == RoundUp {
			size = (size + 1) / 2
		} else {
			size /= 2
		}
		n++
	}
	return n
}

// levelSize returns the dimension of level l of an axis of the given size.
func levelSize(size, l int, rounding LevelRoundingMode) int {
	d := 1 << uint(l)
	s := size / d
	if rounding == RoundUp && s*d < size {
		s++
	}
	if s < 1 {
		return 1
	}
	return s
}

// NumXLevels returns the level count along X for a tiled part.
func (h *Header) NumXLevels() int {
	td, ok := h.Tiles()
	if !ok {
		return 1
	}
	dw := h.DataWindow()
	switch td.Mode {
	case LevelModeMipmap:
		m := dw.Width()
		if dw.Height() > m {
			m = dw.Height()
		}
		return levelCount(m, td.Rounding)
	case LevelModeRipmap:
		return levelCount(dw.Width(), td.Rounding)
	}
	return 1
}

// NumYLevels returns the level count along Y for a tiled part.
func (h *Header) NumYLevels() int {
	td, ok := h.Tiles()
	if !ok {
		return 1
	}
	dw := h.DataWindow()
	switch td.Mode {
	case LevelModeMipmap:
		return h.NumXLevels()
	case LevelModeRipmap:
		return levelCount(dw.Height(), td.Rounding)
	}
	return 1
}

// LevelWidth returns the data width of X-level lx.
func (h *Header) LevelWidth(lx int) int {
	td, _ := h.Tiles()
	return levelSize(h.DataWindow().Width(), lx, td.Rounding)
}

// LevelHeight returns the data height of Y-level ly.
func (h *Header) LevelHeight(ly int) int {
	td, _ := h.Tiles()
	return levelSize(h.DataWindow().Height(), ly, td.Rounding)
}

// NumXTiles returns the tile column count at X-level lx.
func (h *Header) NumXTiles(lx int) int {
	td, ok := h.Tiles()
	if !ok {
		return 0
	}
	return (h.LevelWidth(lx) + int(td.XSize) - 1) / int(td.XSize)
}

// NumYTiles returns the tile row count at Y-level ly.
func (h *Header) NumYTiles(ly int) int {
	td, ok := h.Tiles()
	if !ok {
		return 0
	}
	return (h.LevelHeight(ly) + int(td.YSize) - 1) / int(td.YSize)
}

// ChunksInFile returns the number of chunks this part stores: scanline
// blocks for scanline parts, or tiles summed across every resolution level
// for tiled parts.
func (h *Header) ChunksInFile() int {
	dw := h.DataWindow()
	if td, ok := h.Tiles(); ok {
		switch td.Mode {
		case LevelModeMipmap:
			total := 0
			for l := 0; l < h.NumXLevels(); l++ {
				total += h.NumXTiles(l) * h.NumYTiles(l)
			}
			return total
		case LevelModeRipmap:
			total := 0
			for ly := 0; ly < h.NumYLevels(); ly++ {
				for lx := 0; lx < h.NumXLevels(); lx++ {
					total += h.NumXTiles(lx) * h.NumYTiles(ly)
				}
			}
			return total
		default:
			return h.NumXTiles(0) * h.NumYTiles(0)
		}
	}
	lines := h.Compression().ScanlinesPerChunk()
	if lines <= 0 {
		return 0
	}
	return (dw.Height() + lines - 1) / lines
}
