package exr

import (
	"github.com/patrickhulce/exrio/internal/xdr"
)

// V2i is a 2-component int32 vector.
type V2i struct {
	X, Y int32
}

// V2f is a 2-component float32 vector.
type V2f struct {
	X, Y float32
}

// V2d is a 2-component float64 vector.
type V2d struct {
	X, Y float64
}

// V3i is a 3-component int32 vector.
type V3i struct {
	X, Y, Z int32
}

// V3f is a 3-component float32 vector.
type V3f struct {
	X, Y, Z float32
}

// V3d is a 3-component float64 vector.
type V3d struct {
	X, Y, Z float64
}

// Box2i is an axis-aligned int32 box with inclusive bounds.
type Box2i struct {
	Min, Max V2i
}

// Width returns the number of columns the box covers.
func (b Box2i) Width() int {
	return int(b.Max.X) - int(b.Min.X) + 1
}

// Height returns the number of rows the box covers.
func (b Box2i) Height() int {
	return int(b.Max.Y) - int(b.Min.Y) + 1
}

// Empty reports whether the box covers no pixels.
func (b Box2i) Empty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y
}

// Contains reports whether (x, y) lies inside the box.
func (b Box2i) Contains(x, y int) bool {
	return x >= int(b.Min.X) && x <= int(b.Max.X) &&
		y >= int(b.Min.Y) && y <= int(b.Max.Y)
}

// Intersect returns the overlap of b and o.
func (b Box2i) Intersect(o Box2i) Box2i {
	r := b
	if o.Min.X > r.Min.X {
		r.Min.X = o.Min.X
	}
	if o.Min.Y > r.Min.Y {
		r.Min.Y = o.Min.Y
	}
	if o.Max.X < r.Max.X {
		r.Max.X = o.Max.X
	}
	if o.Max.Y < r.Max.Y {
		r.Max.Y = o.Max.Y
	}
	return r
}

// Box2f is an axis-aligned float32 box with inclusive bounds.
type Box2f struct {
	Min, Max V2f
}

// M33f is a row-major 3x3 float32 matrix.
type M33f [9]float32

// M44f is a row-major 4x4 float32 matrix.
type M44f [16]float32

// M33d is a row-major 3x3 float64 matrix.
type M33d [9]float64

// M44d is a row-major 4x4 float64 matrix.
type M44d [16]float64

// Rational is a number expressed as a ratio of two integers.
type Rational struct {
	Numerator   int32
	Denominator uint32
}

// Float64 returns the rational as a float64. A zero denominator yields 0.
func (r Rational) Float64() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

// Chromaticities holds CIE xy coordinates for the RGB primaries and white
// point of the file's color space.
type Chromaticities struct {
	RedX, RedY     float32
	GreenX, GreenY float32
	BlueX, BlueY   float32
	WhiteX, WhiteY float32
}

// KeyCode identifies a motion picture film frame.
type KeyCode struct {
	FilmMfcCode   int32
	FilmType      int32
	Prefix        int32
	Count         int32
	PerfOffset    int32
	PerfsPerFrame int32
	PerfsPerCount int32
}

// TimeCode holds SMPTE time and control codes. Time fields are stored as
// packed BCD in TimeAndFlags; user data nibbles live in UserData.
type TimeCode struct {
	TimeAndFlags uint32
	UserData     uint32
}

func bcdNibbles(v uint32, lowShift, lowBits, highShift, highBits uint) int {
	low := (v >> lowShift) & (1<<lowBits - 1)
	high := (v >> highShift) & (1<<highBits - 1)
	return int(high*10 + low)
}

func setBCDNibbles(v *uint32, value int, lowShift, lowBits, highShift, highBits uint) {
	low := uint32(value%10) & (1<<lowBits - 1)
	high := uint32(value/10) & (1<<highBits - 1)
	*v &^= (1<<lowBits-1)<<lowShift | (1<<highBits-1)<<highShift
	*v |= low<<lowShift | high<<highShift
}

// Hours returns the hours field (0-23).
func (t TimeCode) Hours() int { return bcdNibbles(t.TimeAndFlags, 24, 4, 28, 2) }

// Minutes returns the minutes field (0-59).
func (t TimeCode) Minutes() int { return bcdNibbles(t.TimeAndFlags, 16, 4, 20, 3) }

// Seconds returns the seconds field (0-59).
func (t TimeCode) Seconds() int { return bcdNibbles(t.TimeAndFlags, 8, 4, 12, 3) }

// Frame returns the frame field (0-29).
func (t TimeCode) Frame() int { return bcdNibbles(t.TimeAndFlags, 0, 4, 4, 2) }

// DropFrame reports the drop-frame flag.
func (t TimeCode) DropFrame() bool { return t.TimeAndFlags&(1<<6) != 0 }

// SetHours sets the hours field.
func (t *TimeCode) SetHours(v int) { setBCDNibbles(&t.TimeAndFlags, v, 24, 4, 28, 2) }

// SetMinutes sets the minutes field.
func (t *TimeCode) SetMinutes(v int) { setBCDNibbles(&t.TimeAndFlags, v, 16, 4, 20, 3) }

// SetSeconds sets the seconds field.
func (t *TimeCode) SetSeconds(v int) { setBCDNibbles(&t.TimeAndFlags, v, 8, 4, 12, 3) }

// SetFrame sets the frame field.
func (t *TimeCode) SetFrame(v int) { setBCDNibbles(&t.TimeAndFlags, v, 0, 4, 4, 2) }

// Preview is a low-resolution RGBA8 thumbnail stored in the header.
type Preview struct {
	Width, Height uint32
	// RGBA holds Width*Height*4 bytes in row-major RGBA order.
	RGBA []byte
}

// FloatVector is a variable-length list of float32 values.
type FloatVector []float32

const maxPreviewDim = 1 << 14

func readV2i(c *xdr.Cursor) (V2i, error) {
	x, err := c.ReadInt32()
	if err != nil {
		return V2i{}, err
	}
	y, err := c.ReadInt32()
	return V2i{x, y}, err
}

func writeV2i(w *xdr.Buffer, v V2i) {
	w.WriteInt32(v.X)
	w.WriteInt32(v.Y)
}

func readV2f(c *xdr.Cursor) (V2f, error) {
	x, err := c.ReadFloat32()
	if err != nil {
		return V2f{}, err
	}
	y, err := c.ReadFloat32()
	return V2f{x, y}, err
}

func writeV2f(w *xdr.Buffer, v V2f) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
}

func readV2d(c *xdr.Cursor) (V2d, error) {
	x, err := c.ReadFloat64()
	if err != nil {
		return V2d{}, err
	}
	y, err := c.ReadFloat64()
	return V2d{x, y}, err
}

func writeV2d(w *xdr.Buffer, v V2d) {
	w.WriteFloat64(v.X)
	w.WriteFloat64(v.Y)
}

func readV3i(c *xdr.Cursor) (V3i, error) {
	var v V3i
	var err error
	if v.X, err = c.ReadInt32(); err != nil {
		return v, err
	}
	if v.Y, err = c.ReadInt32(); err != nil {
		return v, err
	}
	v.Z, err = c.ReadInt32()
	return v, err
}

func writeV3i(w *xdr.Buffer, v V3i) {
	w.WriteInt32(v.X)
	w.WriteInt32(v.Y)
	w.WriteInt32(v.Z)
}

func readV3f(c *xdr.Cursor) (V3f, error) {
	var v V3f
	var err error
	if v.X, err = c.ReadFloat32(); err != nil {
		return v, err
	}
	if v.Y, err = c.ReadFloat32(); err != nil {
		return v, err
	}
	v.Z, err = c.ReadFloat32()
	return v, err
}

func writeV3f(w *xdr.Buffer, v V3f) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

func readV3d(c *xdr.Cursor) (V3d, error) {
	var v V3d
	var err error
	if v.X, err = c.ReadFloat64(); err != nil {
		return v, err
	}
	if v.Y, err = c.ReadFloat64(); err != nil {
		return v, err
	}
	v.Z, err = c.ReadFloat64()
	return v, err
}

func writeV3d(w *xdr.Buffer, v V3d) {
	w.WriteFloat64(v.X)
	w.WriteFloat64(v.Y)
	w.WriteFloat64(v.Z)
}

func readBox2i(c *xdr.Cursor) (Box2i, error) {
	min, err := readV2i(c)
	if err != nil {
		return Box2i{}, err
	}
	max, err := readV2i(c)
	return Box2i{min, max}, err
}

func writeBox2i(w *xdr.Buffer, b Box2i) {
	writeV2i(w, b.Min)
	writeV2i(w, b.Max)
}

func readBox2f(c *xdr.Cursor) (Box2f, error) {
	min, err := readV2f(c)
	if err != nil {
		return Box2f{}, err
	}
	max, err := readV2f(c)
	return Box2f{min, max}, err
}

func writeBox2f(w *xdr.Buffer, b Box2f) {
	writeV2f(w, b.Min)
	writeV2f(w, b.Max)
}

func readM33f(c *xdr.Cursor) (M33f, error) {
	var m M33f
	for i := range m {
		v, err := c.ReadFloat32()
		if err != nil {
			return m, err
		}
		m[i] = v
	}
	return m, nil
}

func writeM33f(w *xdr.Buffer, m M33f) {
	for _, v := range m {
		w.WriteFloat32(v)
	}
}

func readM44f(c *xdr.Cursor) (M44f, error) {
	var m M44f
	for i := range m {
		v, err := c.ReadFloat32()
		if err != nil {
			return m, err
		}
		m[i] = v
	}
	return m, nil
}

func writeM44f(w *xdr.Buffer, m M44f) {
	for _, v := range m {
		w.WriteFloat32(v)
	}
}

func readM33d(c *xdr.Cursor) (M33d, error) {
	var m M33d
	for i := range m {
		v, err := c.ReadFloat64()
		if err != nil {
			return m, err
		}
		m[i] = v
	}
	return m, nil
}

func writeM33d(w *xdr.Buffer, m M33d) {
	for _, v := range m {
		w.WriteFloat64(v)
	}
}

func readM44d(c *xdr.Cursor) (M44d, error) {
	var m M44d
	for i := range m {
		v, err := c.ReadFloat64()
		if err != nil {
			return m, err
		}
		m[i] = v
	}
	return m, nil
}

func writeM44d(w *xdr.Buffer, m M44d) {
	for _, v := range m {
		w.WriteFloat64(v)
	}
}

func readRational(c *xdr.Cursor) (Rational, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return Rational{}, err
	}
	d, err := c.ReadUint32()
	return Rational{n, d}, err
}

func writeRational(w *xdr.Buffer, r Rational) {
	w.WriteInt32(r.Numerator)
	w.WriteUint32(r.Denominator)
}

func readChromaticities(c *xdr.Cursor) (Chromaticities, error) {
	vals := make([]float32, 8)
	for i := range vals {
		v, err := c.ReadFloat32()
		if err != nil {
			return Chromaticities{}, err
		}
		vals[i] = v
	}
	return Chromaticities{
		RedX: vals[0], RedY: vals[1],
		GreenX: vals[2], GreenY: vals[3],
		BlueX: vals[4], BlueY: vals[5],
		WhiteX: vals[6], WhiteY: vals[7],
	}, nil
}

func writeChromaticities(w *xdr.Buffer, ch Chromaticities) {
	for _, v := range []float32{
		ch.RedX, ch.RedY, ch.GreenX, ch.GreenY,
		ch.BlueX, ch.BlueY, ch.WhiteX, ch.WhiteY,
	} {
		w.WriteFloat32(v)
	}
}

func readKeyCode(c *xdr.Cursor) (KeyCode, error) {
	var k KeyCode
	for _, p := range []*int32{
		&k.FilmMfcCode, &k.FilmType, &k.Prefix, &k.Count,
		&k.PerfOffset, &k.PerfsPerFrame, &k.PerfsPerCount,
	} {
		v, err := c.ReadInt32()
		if err != nil {
			return k, err
		}
		*p = v
	}
	return k, nil
}

func writeKeyCode(w *xdr.Buffer, k KeyCode) {
	for _, v := range []int32{
		k.FilmMfcCode, k.FilmType, k.Prefix, k.Count,
		k.PerfOffset, k.PerfsPerFrame, k.PerfsPerCount,
	} {
		w.WriteInt32(v)
	}
}

func readTimeCode(c *xdr.Cursor) (TimeCode, error) {
	tf, err := c.ReadUint32()
	if err != nil {
		return TimeCode{}, err
	}
	ud, err := c.ReadUint32()
	return TimeCode{tf, ud}, err
}

func writeTimeCode(w *xdr.Buffer, t TimeCode) {
	w.WriteUint32(t.TimeAndFlags)
	w.WriteUint32(t.UserData)
}

func readPreview(c *xdr.Cursor) (Preview, error) {
	width, err := c.ReadUint32()
	if err != nil {
		return Preview{}, err
	}
	height, err := c.ReadUint32()
	if err != nil {
		return Preview{}, err
	}
	if width > maxPreviewDim || height > maxPreviewDim {
		return Preview{}, xdr.ErrInvalidSize
	}
	rgba, err := c.ReadBytes(int(width) * int(height) * 4)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Width: width, Height: height, RGBA: rgba}, nil
}

func writePreview(w *xdr.Buffer, p Preview) {
	w.WriteUint32(p.Width)
	w.WriteUint32(p.Height)
	w.WriteBytes(p.RGBA)
}

func readFloatVector(c *xdr.Cursor, size int) (FloatVector, error) {
	if size%4 != 0 {
		return nil, xdr.ErrInvalidSize
	}
	out := make(FloatVector, size/4)
	for i := range out {
		v, err := c.ReadFloat32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeFloatVector(w *xdr.Buffer, fv FloatVector) {
	for _, v := range fv {
		w.WriteFloat32(v)
	}
}

func readStringVector(c *xdr.Cursor, size int) ([]string, error) {
	var out []string
	remaining := size
	for remaining > 0 {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		remaining -= 4
		if n < 0 || int(n) > remaining {
			return nil, xdr.ErrInvalidSize
		}
		b, err := c.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		remaining -= int(n)
		out = append(out, string(b))
	}
	return out, nil
}

func writeStringVector(w *xdr.Buffer, ss []string) {
	for _, s := range ss {
		w.WriteInt32(int32(len(s)))
		w.WriteBytes([]byte(s))
	}
}
