// Package xdr implements the little-endian primitive layer of the OpenEXR
// file format.
//
// Every multi-byte value in an EXR file is little-endian. The Cursor type
// reads primitives out of an in-memory byte source with bounds checking on
// every access; the Buffer type builds serialized output by appending.
// Stream adapters cover callers that work against io.Reader/io.Writer
// directly.
package xdr

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	// ErrTruncated is returned when the byte source ends before a read
	// completes, or a seek lands outside the source.
	ErrTruncated = errors.New("xdr: truncated input")

	// ErrInvalidSize is returned for negative size arguments.
	ErrInvalidSize = errors.New("xdr: invalid size")
)

// ByteOrder is the byte order of all multi-byte fields in an EXR file.
var ByteOrder = binary.LittleEndian

// Cursor reads little-endian primitives from an in-memory byte source.
// All reads advance the cursor; a read past the end fails with ErrTruncated
// and leaves the position unchanged.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor returns a Cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

// Offset returns the current position.
func (c *Cursor) Offset() int {
	return c.off
}

// Seek moves the cursor to an absolute position.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return ErrTruncated
	}
	c.off = off
	return nil
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) error {
	if n < 0 {
		return ErrInvalidSize
	}
	if c.off+n > len(c.data) {
		return ErrTruncated
	}
	c.off += n
	return nil
}

// View returns the next n bytes without copying. The returned slice aliases
// the cursor's backing array and is only valid while that array is.
func (c *Cursor) View(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidSize
	}
	if c.off+n > len(c.data) {
		return nil, ErrTruncated
	}
	b := c.data[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	v, err := c.View(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, v)
	return out, nil
}

// ReadInto fills dst from the source.
func (c *Cursor) ReadInto(dst []byte) error {
	v, err := c.View(len(dst))
	if err != nil {
		return err
	}
	copy(dst, v)
	return nil
}

// ReadUint8 reads one byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	if c.off >= len(c.data) {
		return 0, ErrTruncated
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

// ReadInt8 reads a signed byte.
func (c *Cursor) ReadInt8() (int8, error) {
	b, err := c.ReadUint8()
	return int8(b), err
}

// ReadUint16 reads a little-endian unsigned 16-bit integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	if c.off+2 > len(c.data) {
		return 0, ErrTruncated
	}
	v := ByteOrder.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

// ReadInt16 reads a little-endian signed 16-bit integer.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian unsigned 32-bit integer.
func (c *Cursor) ReadUint32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, ErrTruncated
	}
	v := ByteOrder.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian unsigned 64-bit integer.
func (c *Cursor) ReadUint64() (uint64, error) {
	if c.off+8 > len(c.data) {
		return 0, ErrTruncated
	}
	v := ByteOrder.Uint64(c.data[c.off:])
	c.off += 8
	return v, nil
}

// ReadInt64 reads a little-endian signed 64-bit integer.
func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a little-endian IEEE 754 single-precision value.
func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a little-endian IEEE 754 double-precision value.
func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadString reads a null-terminated string and consumes the terminator.
// maxLen bounds the string length, excluding the terminator; zero means
// unbounded. Exceeding maxLen or reaching end of input before a terminator
// fails with ErrTruncated.
func (c *Cursor) ReadString(maxLen int) (string, error) {
	start := c.off
	for i := c.off; i < len(c.data); i++ {
		if c.data[i] == 0 {
			if maxLen > 0 && i-start > maxLen {
				return "", ErrTruncated
			}
			c.off = i + 1
			return string(c.data[start:i]), nil
		}
		if maxLen > 0 && i-start >= maxLen {
			return "", ErrTruncated
		}
	}
	return "", ErrTruncated
}

// Buffer builds serialized output by appending little-endian primitives.
// Append operations never fail; patching supports the offset-table backfill
// on the write path.
type Buffer struct {
	b []byte
}

// NewBuffer returns a Buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (w *Buffer) Len() int {
	return len(w.b)
}

// Bytes returns the accumulated output. The slice is valid until the next
// write.
func (w *Buffer) Bytes() []byte {
	return w.b
}

// Reset discards the accumulated output, keeping the allocation.
func (w *Buffer) Reset() {
	w.b = w.b[:0]
}

// WriteUint8 appends one byte.
func (w *Buffer) WriteUint8(v uint8) {
	w.b = append(w.b, v)
}

// WriteInt8 appends a signed byte.
func (w *Buffer) WriteInt8(v int8) {
	w.b = append(w.b, byte(v))
}

// WriteBytes appends a byte slice verbatim.
func (w *Buffer) WriteBytes(p []byte) {
	w.b = append(w.b, p...)
}

// WriteZeros appends n zero bytes. Used to reserve placeholder space that a
// later Patch call overwrites.
func (w *Buffer) WriteZeros(n int) {
	w.b = append(w.b, make([]byte, n)...)
}

// WriteUint16 appends a little-endian unsigned 16-bit integer.
func (w *Buffer) WriteUint16(v uint16) {
	w.b = append(w.b, byte(v), byte(v>>8))
}

// WriteInt16 appends a little-endian signed 16-bit integer.
func (w *Buffer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

// WriteUint32 appends a little-endian unsigned 32-bit integer.
func (w *Buffer) WriteUint32(v uint32) {
	w.b = append(w.b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteInt32 appends a little-endian signed 32-bit integer.
func (w *Buffer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteUint64 appends a little-endian unsigned 64-bit integer.
func (w *Buffer) WriteUint64(v uint64) {
	w.b = append(w.b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// WriteInt64 appends a little-endian signed 64-bit integer.
func (w *Buffer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFloat32 appends a little-endian IEEE 754 single-precision value.
func (w *Buffer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends a little-endian IEEE 754 double-precision value.
func (w *Buffer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString appends a null-terminated string.
func (w *Buffer) WriteString(s string) {
	w.b = append(w.b, s...)
	w.b = append(w.b, 0)
}

// PatchUint64 overwrites the 8 bytes at off with a little-endian value.
// The bytes must already have been written.
func (w *Buffer) PatchUint64(off int, v uint64) error {
	if off < 0 || off+8 > len(w.b) {
		return ErrTruncated
	}
	ByteOrder.PutUint64(w.b[off:], v)
	return nil
}

// StreamReader reads little-endian primitives from an io.Reader.
type StreamReader struct {
	r       io.Reader
	scratch [8]byte
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

func (r *StreamReader) fill(n int) error {
	if _, err := io.ReadFull(r.r, r.scratch[:n]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return err
	}
	return nil
}

// ReadInto fills dst from the stream.
func (r *StreamReader) ReadInto(dst []byte) error {
	if _, err := io.ReadFull(r.r, dst); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return err
	}
	return nil
}

// ReadUint32 reads a little-endian unsigned 32-bit integer.
func (r *StreamReader) ReadUint32() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(r.scratch[:4]), nil
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (r *StreamReader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian unsigned 64-bit integer.
func (r *StreamReader) ReadUint64() (uint64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(r.scratch[:8]), nil
}

// StreamWriter writes little-endian primitives to an io.Writer.
type StreamWriter struct {
	w       io.Writer
	scratch [8]byte
}

// NewStreamWriter wraps w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteBytes writes a byte slice verbatim.
func (w *StreamWriter) WriteBytes(p []byte) error {
	_, err := w.w.Write(p)
	return err
}

// WriteUint32 writes a little-endian unsigned 32-bit integer.
func (w *StreamWriter) WriteUint32(v uint32) error {
	ByteOrder.PutUint32(w.scratch[:4], v)
	_, err := w.w.Write(w.scratch[:4])
	return err
}

// WriteInt32 writes a little-endian signed 32-bit integer.
func (w *StreamWriter) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 writes a little-endian unsigned 64-bit integer.
func (w *StreamWriter) WriteUint64(v uint64) error {
	ByteOrder.PutUint64(w.scratch[:8], v)
	_, err := w.w.Write(w.scratch[:8])
	return err
}
