package exr

import (
	"fmt"
	"io"

	"github.com/patrickhulce/exrio/internal/xdr"
)

// Writer emits an EXR file chunk by chunk. Headers stay mutable until the
// first chunk is written; writing the first chunk serializes and freezes
// every header. The offset table is reserved up front and backfilled at
// Close, which requires a seekable sink — NewBufferedWriter covers sinks
// that cannot seek by assembling the whole file in memory first.
type Writer struct {
	ws   io.WriteSeeker
	sink io.Writer   // buffered mode: final destination
	buf  *xdr.Buffer // buffered mode: whole-file accumulator

	headers  []*Header
	offsets  []OffsetTable
	tablePos []int64 // absolute position of each part's offset table
	written  []int   // chunks emitted per part

	base    int64 // sink position of the file's first byte
	pos     int64 // next write position, absolute
	started bool
	closed  bool
}

// NewWriter returns a writer for a single-part file on a seekable sink.
func NewWriter(w io.WriteSeeker, h *Header) (*Writer, error) {
	return newWriter(w, nil, []*Header{h})
}

// NewMultiPartWriter returns a writer for a multi-part file on a seekable
// sink. Each header must carry name, type and chunkCount-compatible
// attributes; missing name/type/chunkCount are filled in at the first
// chunk write.
func NewMultiPartWriter(w io.WriteSeeker, headers []*Header) (*Writer, error) {
	return newWriter(w, nil, headers)
}

// NewBufferedWriter returns a writer that buffers the entire file in
// memory and flushes it to w at Close. This is the capability fallback for
// sinks that cannot seek; offsets are patched in the buffer instead of
// backfilled on the sink.
func NewBufferedWriter(w io.Writer, headers ...*Header) (*Writer, error) {
	return newWriter(nil, w, headers)
}

func newWriter(ws io.WriteSeeker, sink io.Writer, headers []*Header) (*Writer, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no headers", ErrInvalidArgument)
	}
	for _, h := range headers {
		if h == nil {
			return nil, fmt.Errorf("%w: nil header", ErrInvalidArgument)
		}
	}
	w := &Writer{ws: ws, sink: sink, headers: headers}
	if sink != nil {
		w.buf = xdr.NewBuffer(64 << 10)
	}
	return w, nil
}

// Header returns the header of a part. It stays mutable until the first
// chunk write.
func (w *Writer) Header(part int) *Header {
	if part < 0 || part >= len(w.headers) {
		return nil
	}
	return w.headers[part]
}

// IsMultiPart reports whether the writer emits a multi-part file.
func (w *Writer) IsMultiPart() bool {
	return len(w.headers) > 1
}

// versionField computes the version word from the staged headers.
func (w *Writer) versionField() uint32 {
	v := uint32(supportedVersion)
	if w.IsMultiPart() {
		v |= versionMultiPart
	} else if w.headers[0].IsTiled() {
		v |= versionTiledFlag
	}
	for _, h := range w.headers {
		for i := 0; i < h.Len(); i++ {
			a := h.At(i)
			if len(a.Name) > 31 || len(string(a.Type)) > 31 {
				v |= versionLongNames
			}
		}
		cl := h.Channels()
		for i := 0; i < cl.Len(); i++ {
			if len(cl.At(i).Name) > 31 {
				v |= versionLongNames
			}
		}
	}
	return v
}

// start validates and serializes the headers, reserves the offset tables
// and freezes every header. Called by the first chunk write.
func (w *Writer) start() error {
	if w.started {
		return nil
	}
	multiPart := w.IsMultiPart()
	if multiPart {
		for i, h := range w.headers {
			if !h.Has(AttrNameName) {
				if err := h.SetName(fmt.Sprintf("part%d", i)); err != nil {
					return err
				}
			}
			if !h.Has(AttrNameType) {
				t := PartTypeScanline
				if _, ok := h.Tiles(); ok {
					t = PartTypeTiled
				}
				if err := h.SetPartType(t); err != nil {
					return err
				}
			}
			if err := h.Set(AttrNameChunkCount, TypeInt, int32(h.ChunksInFile())); err != nil {
				return err
			}
		}
	}
	for i, h := range w.headers {
		if err := h.Validate(multiPart); err != nil {
			return fmt.Errorf("%w (part %d)", err, i)
		}
	}

	hdr := xdr.NewBuffer(4 << 10)
	hdr.WriteInt32(MagicNumber)
	hdr.WriteUint32(w.versionField())
	for _, h := range w.headers {
		if err := h.writeTo(hdr); err != nil {
			return err
		}
	}
	if multiPart {
		hdr.WriteUint8(0) // end of header sequence
	}

	w.offsets = make([]OffsetTable, len(w.headers))
	w.tablePos = make([]int64, len(w.headers))
	w.written = make([]int, len(w.headers))
	for i, h := range w.headers {
		w.tablePos[i] = int64(hdr.Len())
		w.offsets[i] = make(OffsetTable, h.ChunksInFile())
		hdr.WriteZeros(len(w.offsets[i]) * 8)
	}

	if w.buf != nil {
		w.buf.WriteBytes(hdr.Bytes())
		w.pos = int64(w.buf.Len())
	} else {
		base, err := w.ws.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		w.base = base
		for i := range w.tablePos {
			w.tablePos[i] += base
		}
		if _, err := w.ws.Write(hdr.Bytes()); err != nil {
			return err
		}
		w.pos = base + int64(hdr.Len())
	}
	for _, h := range w.headers {
		h.freeze()
	}
	w.started = true
	return nil
}

// scanlineSlot returns the offset-table slot of the chunk holding row y.
func scanlineSlot(h *Header, y int) (int, error) {
	dw := h.DataWindow()
	if y < int(dw.Min.Y) || y > int(dw.Max.Y) {
		return 0, fmt.Errorf("%w: row %d outside data window", ErrInvalidArgument, y)
	}
	lines := h.Compression().ScanlinesPerChunk()
	idx := (y - int(dw.Min.Y)) / lines
	if h.LineOrder() == LineOrderDecreasingY {
		total := (dw.Height() + lines - 1) / lines
		idx = total - 1 - idx
	}
	return idx, nil
}

// tileSlot returns the offset-table slot of a tile chunk. Slots are
// ordered level-major (mipmap levels in order; ripmap levels y-major),
// then by tile row and column.
func tileSlot(h *Header, tileX, tileY, levelX, levelY int) (int, error) {
	td, ok := h.Tiles()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingRequiredAttribute, AttrNameTiles)
	}
	if levelX < 0 || levelX >= h.NumXLevels() || levelY < 0 || levelY >= h.NumYLevels() {
		return 0, fmt.Errorf("%w: level (%d, %d)", ErrInvalidArgument, levelX, levelY)
	}
	if td.Mode == LevelModeMipmap && levelX != levelY {
		return 0, fmt.Errorf("%w: mipmap level (%d, %d)", ErrInvalidArgument, levelX, levelY)
	}
	if tileX < 0 || tileX >= h.NumXTiles(levelX) || tileY < 0 || tileY >= h.NumYTiles(levelY) {
		return 0, fmt.Errorf("%w: tile (%d, %d) at level (%d, %d)", ErrInvalidArgument, tileX, tileY, levelX, levelY)
	}
	slot := 0
	switch td.Mode {
	case LevelModeMipmap:
		for l := 0; l < levelX; l++ {
			slot += h.NumXTiles(l) * h.NumYTiles(l)
		}
	case LevelModeRipmap:
		for ly := 0; ly < levelY; ly++ {
			for lx := 0; lx < h.NumXLevels(); lx++ {
				slot += h.NumXTiles(lx) * h.NumYTiles(ly)
			}
		}
		for lx := 0; lx < levelX; lx++ {
			slot += h.NumXTiles(lx) * h.NumYTiles(levelY)
		}
	}
	return slot + tileY*h.NumXTiles(levelX) + tileX, nil
}

// writeChunk emits one chunk header plus payload and records its offset.
func (w *Writer) writeChunk(part, slot int, coords []int32, data []byte) error {
	if w.closed {
		return fmt.Errorf("%w: writer closed", ErrInvalidArgument)
	}
	if err := w.start(); err != nil {
		return err
	}
	if w.offsets[part][slot] != 0 {
		return chunkErr(fmt.Errorf("%w: chunk already written", ErrInvalidArgument), part, slot)
	}

	chunk := xdr.NewBuffer(len(data) + 24)
	if w.IsMultiPart() {
		chunk.WriteInt32(int32(part))
	}
	for _, c := range coords {
		chunk.WriteInt32(c)
	}
	chunk.WriteInt32(int32(len(data)))
	chunk.WriteBytes(data)

	w.offsets[part][slot] = uint64(w.pos)
	if w.buf != nil {
		w.buf.WriteBytes(chunk.Bytes())
		w.pos = int64(w.buf.Len())
	} else {
		if _, err := w.ws.Write(chunk.Bytes()); err != nil {
			return err
		}
		w.pos += int64(chunk.Len())
	}
	w.written[part]++
	return nil
}

// WriteScanlineChunk writes the compressed payload of the scanline chunk
// starting at row y of the given part.
func (w *Writer) WriteScanlineChunk(part, y int, data []byte) error {
	h := w.Header(part)
	if h == nil {
		return fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if h.IsTiled() {
		return fmt.Errorf("%w: part %d is tiled", ErrInvalidArgument, part)
	}
	slot, err := scanlineSlot(h, y)
	if err != nil {
		return err
	}
	return w.writeChunk(part, slot, []int32{int32(y)}, data)
}

// WriteChunk writes a scanline chunk of part 0.
func (w *Writer) WriteChunk(y int, data []byte) error {
	return w.WriteScanlineChunk(0, y, data)
}

// WriteTileChunk writes the compressed payload of one tile.
func (w *Writer) WriteTileChunk(part, tileX, tileY, levelX, levelY int, data []byte) error {
	h := w.Header(part)
	if h == nil {
		return fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if !h.IsTiled() {
		return fmt.Errorf("%w: part %d is not tiled", ErrInvalidArgument, part)
	}
	slot, err := tileSlot(h, tileX, tileY, levelX, levelY)
	if err != nil {
		return err
	}
	coords := []int32{int32(tileX), int32(tileY), int32(levelX), int32(levelY)}
	return w.writeChunk(part, slot, coords, data)
}

// Close backfills the offset tables and, in buffered mode, flushes the
// assembled file to the sink. Every chunk of every part must have been
// written.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.start(); err != nil {
		return err
	}
	w.closed = true
	for part, t := range w.offsets {
		if w.written[part] != len(t) {
			return fmt.Errorf("exr: part %d incomplete: %d of %d chunks written",
				part, w.written[part], len(t))
		}
	}
	if w.buf != nil {
		for part, t := range w.offsets {
			for i, off := range t {
				if err := w.buf.PatchUint64(int(w.tablePos[part])+i*8, off); err != nil {
					return err
				}
			}
		}
		_, err := w.sink.Write(w.buf.Bytes())
		return err
	}
	for part, t := range w.offsets {
		if _, err := w.ws.Seek(w.tablePos[part], io.SeekStart); err != nil {
			return err
		}
		table := xdr.NewBuffer(len(t) * 8)
		for _, off := range t {
			table.WriteUint64(off)
		}
		if _, err := w.ws.Write(table.Bytes()); err != nil {
			return err
		}
	}
	_, err := w.ws.Seek(w.pos, io.SeekStart)
	return err
}
