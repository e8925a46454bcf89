package exr

import (
	"fmt"

	"github.com/patrickhulce/exrio/compression"
	"github.com/patrickhulce/exrio/internal/xdr"
)

// Compression identifies the codec applied to chunk payloads.
type Compression int32

const (
	CompressionNone     Compression = 0
	CompressionRLE      Compression = 1
	CompressionZIPS     Compression = 2
	CompressionZIP      Compression = 3
	CompressionPIZ      Compression = 4
	CompressionPXR24    Compression = 5
	CompressionB44      Compression = 6
	CompressionB44A     Compression = 7
	CompressionDWAA     Compression = 8
	CompressionDWAB     Compression = 9
	CompressionHTJ2K256 Compression = 10
	CompressionHTJ2K32  Compression = 11
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRLE:
		return "rle"
	case CompressionZIPS:
		return "zips"
	case CompressionZIP:
		return "zip"
	case CompressionPIZ:
		return "piz"
	case CompressionPXR24:
		return "pxr24"
	case CompressionB44:
		return "b44"
	case CompressionB44A:
		return "b44a"
	case CompressionDWAA:
		return "dwaa"
	case CompressionDWAB:
		return "dwab"
	case CompressionHTJ2K256:
		return "htj2k256"
	case CompressionHTJ2K32:
		return "htj2k32"
	}
	return fmt.Sprintf("compression(%d)", int32(c))
}

// Known reports whether the compression id has a registered codec.
func (c Compression) Known() bool {
	return compression.Known(int(c))
}

// Lossless reports whether the codec reproduces chunk bytes exactly.
func (c Compression) Lossless() bool {
	codec, err := compression.ForID(int(c))
	return err == nil && codec.Lossless()
}

// ScanlinesPerChunk returns the number of image rows per scanline chunk,
// or 0 for an unknown compression id.
func (c Compression) ScanlinesPerChunk() int {
	codec, err := compression.ForID(int(c))
	if err != nil {
		return 0
	}
	return codec.LinesPerChunk()
}

// LineOrder declares the storage order of chunks in the file.
type LineOrder int32

const (
	LineOrderIncreasingY LineOrder = 0
	LineOrderDecreasingY LineOrder = 1
	// LineOrderRandom permits tiles in any storage order.
	LineOrderRandom LineOrder = 2
)

func (o LineOrder) String() string {
	switch o {
	case LineOrderIncreasingY:
		return "increasingY"
	case LineOrderDecreasingY:
		return "decreasingY"
	case LineOrderRandom:
		return "random"
	}
	return fmt.Sprintf("lineOrder(%d)", int32(o))
}

// EnvMap identifies the projection of an environment map image.
type EnvMap int32

const (
	EnvMapLatLong EnvMap = 0
	EnvMapCube    EnvMap = 1
)

// DeepImageState declares the sorting and overlap guarantees of a deep part's
// sample lists.
type DeepImageState int32

const (
	DeepStateMessy          DeepImageState = 0
	DeepStateSorted         DeepImageState = 1
	DeepStateNonOverlapping DeepImageState = 2
	DeepStateTidy           DeepImageState = 3
)

// LevelMode declares the resolution-level structure of a tiled part.
type LevelMode int

const (
	LevelModeOne    LevelMode = 0
	LevelModeMipmap LevelMode = 1
	LevelModeRipmap LevelMode = 2
)

// LevelRoundingMode declares how level dimensions round when halving.
type LevelRoundingMode int

const (
	RoundDown LevelRoundingMode = 0
	RoundUp   LevelRoundingMode = 1
)

// TileDescription declares tile geometry and level structure.
type TileDescription struct {
	XSize, YSize uint32
	Mode         LevelMode
	Rounding     LevelRoundingMode
}

func readTileDescription(c *xdr.Cursor) (TileDescription, error) {
	var td TileDescription
	var err error
	if td.XSize, err = c.ReadUint32(); err != nil {
		return td, err
	}
	if td.YSize, err = c.ReadUint32(); err != nil {
		return td, err
	}
	mode, err := c.ReadUint8()
	if err != nil {
		return td, err
	}
	td.Mode = LevelMode(mode & 0xf)
	td.Rounding = LevelRoundingMode(mode >> 4)
	return td, nil
}

func writeTileDescription(w *xdr.Buffer, td TileDescription) {
	w.WriteUint32(td.XSize)
	w.WriteUint32(td.YSize)
	w.WriteUint8(uint8(td.Mode) | uint8(td.Rounding)<<4)
}

// AttributeType is the wire name of an attribute's value type.
type AttributeType string

const (
	TypeBox2i          AttributeType = "box2i"
	TypeBox2f          AttributeType = "box2f"
	TypeChlist         AttributeType = "chlist"
	TypeChromaticities AttributeType = "chromaticities"
	TypeCompression    AttributeType = "compression"
	TypeDeepImageState AttributeType = "deepImageState"
	TypeDouble         AttributeType = "double"
	TypeEnvmap         AttributeType = "envmap"
	TypeFloat          AttributeType = "float"
	TypeFloatVector    AttributeType = "floatvector"
	TypeInt            AttributeType = "int"
	TypeKeyCode        AttributeType = "keycode"
	TypeLineOrder      AttributeType = "lineOrder"
	TypeM33d           AttributeType = "m33d"
	TypeM33f           AttributeType = "m33f"
	TypeM44d           AttributeType = "m44d"
	TypeM44f           AttributeType = "m44f"
	TypePreview        AttributeType = "preview"
	TypeRational       AttributeType = "rational"
	TypeString         AttributeType = "string"
	TypeStringVector   AttributeType = "stringvector"
	TypeTileDesc       AttributeType = "tiledesc"
	TypeTimeCode       AttributeType = "timecode"
	TypeV2d            AttributeType = "v2d"
	TypeV2f            AttributeType = "v2f"
	TypeV2i            AttributeType = "v2i"
	TypeV3d            AttributeType = "v3d"
	TypeV3f            AttributeType = "v3f"
	TypeV3i            AttributeType = "v3i"
)

// fixedAttrSizes maps fixed-size attribute types to their wire size.
// Decoding rejects records whose declared size disagrees.
var fixedAttrSizes = map[AttributeType]int{
	TypeBox2i:          16,
	TypeBox2f:          16,
	TypeChromaticities: 32,
	TypeCompression:    1,
	TypeDeepImageState: 1,
	TypeDouble:         8,
	TypeEnvmap:         1,
	TypeFloat:          4,
	TypeInt:            4,
	TypeKeyCode:        28,
	TypeLineOrder:      1,
	TypeM33d:           72,
	TypeM33f:           36,
	TypeM44d:           128,
	TypeM44f:           64,
	TypeRational:       8,
	TypeTileDesc:       9,
	TypeTimeCode:       8,
	TypeV2d:            16,
	TypeV2f:            8,
	TypeV2i:            8,
	TypeV3d:            24,
	TypeV3f:            12,
	TypeV3i:            12,
}

// Attribute is one named, typed header record. Value holds the decoded Go
// value for known types; for unknown types it holds the raw []byte payload,
// preserved verbatim for write-back.
type Attribute struct {
	Name  string
	Type  AttributeType
	Value any
}

const (
	maxAttrName = 255
	maxAttrType = 255
)

// readAttribute reads one attribute record. The header terminator (a lone
// zero byte where a name would start) is reported as a nil attribute.
func readAttribute(c *xdr.Cursor) (*Attribute, error) {
	name, err := c.ReadString(maxAttrName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}
	typeName, err := c.ReadString(maxAttrType)
	if err != nil {
		return nil, err
	}
	size, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, attrErr(name, "negative size")
	}
	attr := &Attribute{Name: name, Type: AttributeType(typeName)}

	if want, fixed := fixedAttrSizes[attr.Type]; fixed && int(size) != want {
		return nil, attrErr(name, fmt.Sprintf("type %s declares size %d, want %d", typeName, size, want))
	}

	// Decode from a bounded view so a value codec can never read past the
	// declared size, and so trailing bytes are detected.
	payload, err := c.View(int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: attribute %q", ErrTruncated, name)
	}
	vc := xdr.NewCursor(payload)

	switch attr.Type {
	case TypeBox2i:
		attr.Value, err = readBox2i(vc)
	case TypeBox2f:
		attr.Value, err = readBox2f(vc)
	case TypeChlist:
		attr.Value, err = readChannelList(vc)
	case TypeChromaticities:
		attr.Value, err = readChromaticities(vc)
	case TypeCompression:
		var b uint8
		b, err = vc.ReadUint8()
		attr.Value = Compression(b)
	case TypeDeepImageState:
		var b uint8
		b, err = vc.ReadUint8()
		attr.Value = DeepImageState(b)
	case TypeDouble:
		attr.Value, err = vc.ReadFloat64()
	case TypeEnvmap:
		var b uint8
		b, err = vc.ReadUint8()
		attr.Value = EnvMap(b)
	case TypeFloat:
		attr.Value, err = vc.ReadFloat32()
	case TypeFloatVector:
		attr.Value, err = readFloatVector(vc, int(size))
	case TypeInt:
		attr.Value, err = vc.ReadInt32()
	case TypeKeyCode:
		attr.Value, err = readKeyCode(vc)
	case TypeLineOrder:
		var b uint8
		b, err = vc.ReadUint8()
		attr.Value = LineOrder(b)
	case TypeM33d:
		attr.Value, err = readM33d(vc)
	case TypeM33f:
		attr.Value, err = readM33f(vc)
	case TypeM44d:
		attr.Value, err = readM44d(vc)
	case TypeM44f:
		attr.Value, err = readM44f(vc)
	case TypePreview:
		attr.Value, err = readPreview(vc)
	case TypeRational:
		attr.Value, err = readRational(vc)
	case TypeString:
		b := make([]byte, size)
		err = vc.ReadInto(b)
		attr.Value = string(b)
	case TypeStringVector:
		attr.Value, err = readStringVector(vc, int(size))
	case TypeTileDesc:
		attr.Value, err = readTileDescription(vc)
	case TypeTimeCode:
		attr.Value, err = readTimeCode(vc)
	case TypeV2d:
		attr.Value, err = readV2d(vc)
	case TypeV2f:
		attr.Value, err = readV2f(vc)
	case TypeV2i:
		attr.Value, err = readV2i(vc)
	case TypeV3d:
		attr.Value, err = readV3d(vc)
	case TypeV3f:
		attr.Value, err = readV3f(vc)
	case TypeV3i:
		attr.Value, err = readV3i(vc)
	default:
		// Unknown type: keep the payload verbatim for lossless round-trip.
		raw := make([]byte, size)
		copy(raw, payload)
		attr.Value = raw
		return attr, nil
	}
	if err != nil {
		return nil, attrErr(name, err.Error())
	}
	if vc.Remaining() != 0 {
		return nil, attrErr(name, fmt.Sprintf("%d trailing bytes after %s value", vc.Remaining(), typeName))
	}
	return attr, nil
}

// writeAttribute appends one attribute record.
func writeAttribute(w *xdr.Buffer, attr *Attribute) error {
	val := xdr.NewBuffer(64)
	switch v := attr.Value.(type) {
	case Box2i:
		writeBox2i(val, v)
	case Box2f:
		writeBox2f(val, v)
	case *ChannelList:
		writeChannelList(val, v)
	case Chromaticities:
		writeChromaticities(val, v)
	case Compression:
		val.WriteUint8(uint8(v))
	case DeepImageState:
		val.WriteUint8(uint8(v))
	case float64:
		val.WriteFloat64(v)
	case EnvMap:
		val.WriteUint8(uint8(v))
	case float32:
		val.WriteFloat32(v)
	case FloatVector:
		writeFloatVector(val, v)
	case int32:
		val.WriteInt32(v)
	case KeyCode:
		writeKeyCode(val, v)
	case LineOrder:
		val.WriteUint8(uint8(v))
	case M33d:
		writeM33d(val, v)
	case M33f:
		writeM33f(val, v)
	case M44d:
		writeM44d(val, v)
	case M44f:
		writeM44f(val, v)
	case Preview:
		writePreview(val, v)
	case Rational:
		writeRational(val, v)
	case string:
		val.WriteBytes([]byte(v))
	case []string:
		writeStringVector(val, v)
	case TileDescription:
		writeTileDescription(val, v)
	case TimeCode:
		writeTimeCode(val, v)
	case V2d:
		writeV2d(val, v)
	case V2f:
		writeV2f(val, v)
	case V2i:
		writeV2i(val, v)
	case V3d:
		writeV3d(val, v)
	case V3f:
		writeV3f(val, v)
	case V3i:
		writeV3i(val, v)
	case []byte:
		val.WriteBytes(v)
	default:
		return attrErr(attr.Name, fmt.Sprintf("unsupported value type %T", attr.Value))
	}
	w.WriteString(attr.Name)
	w.WriteString(string(attr.Type))
	w.WriteInt32(int32(val.Len()))
	w.WriteBytes(val.Bytes())
	return nil
}
