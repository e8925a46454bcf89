package exr

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/patrickhulce/exrio/internal/xdr"
)

// MagicNumber is the first four bytes of every EXR file, little-endian.
const MagicNumber int32 = 20000630

// Version field layout: low byte is the format version, the rest are
// capability flags.
const (
	versionNumberMask uint32 = 0xff
	versionTiledFlag  uint32 = 1 << 9
	versionLongNames  uint32 = 1 << 10
	versionDeepFlag   uint32 = 1 << 11
	versionMultiPart  uint32 = 1 << 12

	supportedVersion = 2
	knownVersionBits = versionNumberMask | versionTiledFlag |
		versionLongNames | versionDeepFlag | versionMultiPart
)

// source is the byte-source abstraction of the read path. view returns
// exactly n bytes starting at off; implementations may alias shared memory.
type source interface {
	view(off int64, n int) ([]byte, error)
}

// bytesSource serves views of an in-memory (or memory-mapped) file.
type bytesSource []byte

func (b bytesSource) view(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(b)) {
		return nil, ErrTruncated
	}
	return b[off : off+int64(n) : off+int64(n)], nil
}

// readerAtSource serves views by reading from an io.ReaderAt.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
}

func (s readerAtSource) view(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > s.size {
		return nil, ErrTruncated
	}
	buf := make([]byte, n)
	if _, err := s.r.ReadAt(buf, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf, nil
}

// File is an open EXR file: validated version, per-part headers and chunk
// offset tables, and a byte source for chunk payloads. A File is safe for
// concurrent chunk reads.
type File struct {
	src       source
	size      int64
	version   uint32
	headers   []*Header
	offsets   []OffsetTable
	dataStart int64
	closer    io.Closer
}

// Open reads a file's headers and offset tables from an io.ReaderAt.
func Open(r io.ReaderAt, size int64) (*File, error) {
	return openSource(readerAtSource{r: r, size: size}, size, nil)
}

// OpenBytes opens an in-memory file. Chunk reads alias data.
func OpenBytes(data []byte) (*File, error) {
	return openSource(bytesSource(data), int64(len(data)), nil)
}

// OpenFile opens a file from the filesystem, memory-mapping it when the
// platform supports that and falling back to positional reads.
func OpenFile(path string) (*File, error) {
	if mm, err := openMmap(path); err == nil {
		f, err := openSource(bytesSource(mm.data), int64(len(mm.data)), mm)
		if err != nil {
			mm.Close()
			return nil, err
		}
		return f, nil
	}
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, err
	}
	f, err := openSource(readerAtSource{r: osf, size: st.Size()}, st.Size(), osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

// OpenFileMmap opens a file via memory mapping only, with no positional
// fallback. Chunk reads alias the mapping.
func OpenFileMmap(path string) (*File, error) {
	mm, err := openMmap(path)
	if err != nil {
		return nil, err
	}
	f, err := openSource(bytesSource(mm.data), int64(len(mm.data)), mm)
	if err != nil {
		mm.Close()
		return nil, err
	}
	return f, nil
}

func isTruncated(err error) bool {
	return errors.Is(err, ErrTruncated) || errors.Is(err, xdr.ErrTruncated)
}

// openSource parses the file prefix (magic, version, headers, offset
// tables) over a window that grows until the prefix fits. Re-parsing from
// the start keeps the loader simple; header parsing is cheap relative to
// pixel decode.
func openSource(src source, size int64, closer io.Closer) (*File, error) {
	window := int64(64 << 10)
	if window > size {
		window = size
	}
	for {
		data, err := src.view(0, int(window))
		if err != nil {
			return nil, err
		}
		f, need, err := parsePrefix(data, window == size)
		if err == nil {
			f.src = src
			f.size = size
			f.closer = closer
			if err := f.validateOffsets(); err != nil {
				return nil, err
			}
			return f, nil
		}
		if isTruncated(err) {
			if window < size {
				window *= 2
				if need > window {
					window = need
				}
				if window > size {
					window = size
				}
				continue
			}
			if !errors.Is(err, ErrTruncated) {
				err = fmt.Errorf("%w: %v", ErrTruncated, err)
			}
		}
		return nil, err
	}
}

// parsePrefix parses everything before the chunk data. full reports that
// data covers the whole file, making truncation errors final. need, when
// nonzero, is the known total prefix length so the caller can grow the
// window directly to it.
func parsePrefix(data []byte, full bool) (*File, int64, error) {
	c := xdr.NewCursor(data)
	magic, err := c.ReadInt32()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing magic number", ErrTruncated)
	}
	if magic != MagicNumber {
		return nil, 0, fmt.Errorf("%w: bad magic number 0x%08x", ErrUnsupportedFormat, uint32(magic))
	}
	version, err := c.ReadUint32()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: missing version field", ErrTruncated)
	}
	if version&versionNumberMask != supportedVersion {
		return nil, 0, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, version&versionNumberMask)
	}
	if version&^knownVersionBits != 0 {
		return nil, 0, fmt.Errorf("%w: unknown version flags 0x%x", ErrUnsupportedFormat, version&^knownVersionBits)
	}
	multiPart := version&versionMultiPart != 0

	f := &File{version: version}
	if multiPart {
		for {
			h, err := readHeader(c)
			if err != nil {
				return nil, 0, err
			}
			if h == nil {
				break
			}
			f.headers = append(f.headers, h)
		}
		if len(f.headers) == 0 {
			return nil, 0, fmt.Errorf("%w: multi-part file with no parts", ErrUnsupportedFormat)
		}
	} else {
		h, err := readHeader(c)
		if err != nil {
			return nil, 0, err
		}
		if h == nil {
			return nil, 0, fmt.Errorf("%w: empty header", ErrMissingRequiredAttribute)
		}
		f.headers = []*Header{h}
	}
	for i, h := range f.headers {
		if err := h.Validate(multiPart); err != nil {
			return nil, 0, fmt.Errorf("%w (part %d)", err, i)
		}
		if h.IsDeep() {
			return nil, 0, fmt.Errorf("%w: deep part %d not supported", ErrUnsupportedFormat, i)
		}
	}
	if !multiPart && version&versionTiledFlag != 0 {
		if _, ok := f.headers[0].Tiles(); !ok {
			return nil, 0, fmt.Errorf("%w: %q (tiled file)", ErrMissingRequiredAttribute, AttrNameTiles)
		}
	}

	// The offset tables follow the headers directly; their total length is
	// now known, so a short window can grow straight to the prefix size.
	need := int64(c.Offset())
	counts := make([]int, len(f.headers))
	for i, h := range f.headers {
		n := h.ChunksInFile()
		if multiPart {
			if cc := h.ChunkCount(); cc >= 0 {
				if cc != n {
					return nil, 0, fmt.Errorf("%w: part %d declares %d chunks, layout implies %d",
						ErrCorruptOffsetTable, i, cc, n)
				}
			}
		}
		counts[i] = n
		need += int64(n) * 8
	}
	for i := range f.headers {
		t, err := readOffsetTable(c, counts[i])
		if err != nil {
			if !full {
				return nil, need, err
			}
			return nil, 0, fmt.Errorf("%w (part %d)", err, i)
		}
		f.offsets = append(f.offsets, t)
	}
	f.dataStart = int64(c.Offset())
	return f, need, nil
}

// chunkHeaderSize returns the per-chunk header length for a part.
func (f *File) chunkHeaderSize(part int) int {
	n := 8 // y (or +tile coords) and payload size
	if f.headers[part].IsTiled() {
		n = 20
	}
	if f.IsMultiPart() {
		n += 4
	}
	return n
}

func (f *File) validateOffsets() error {
	for part, t := range f.offsets {
		if err := t.validate(part, f.dataStart, f.size, f.chunkHeaderSize(part)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying byte source.
func (f *File) Close() error {
	if f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

// Version returns the raw version field.
func (f *File) Version() uint32 {
	return f.version
}

// IsMultiPart reports whether the file carries multiple parts.
func (f *File) IsMultiPart() bool {
	return f.version&versionMultiPart != 0
}

// NumParts returns the part count.
func (f *File) NumParts() int {
	return len(f.headers)
}

// Header returns the header of a part, or nil for an invalid index.
func (f *File) Header(part int) *Header {
	if part < 0 || part >= len(f.headers) {
		return nil
	}
	return f.headers[part]
}

// Offsets returns a copy of a part's chunk offset table.
func (f *File) Offsets(part int) OffsetTable {
	if part < 0 || part >= len(f.offsets) {
		return nil
	}
	t := make(OffsetTable, len(f.offsets[part]))
	copy(t, f.offsets[part])
	return t
}

// readChunkHeader reads and validates the fixed chunk header at a table
// slot, returning the coordinate words and a view of the payload.
func (f *File) readChunkPayload(part, index, coordWords int) ([]int32, []byte, error) {
	if part < 0 || part >= len(f.offsets) {
		return nil, nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	t := f.offsets[part]
	if index < 0 || index >= len(t) {
		return nil, nil, fmt.Errorf("%w: chunk index %d of %d", ErrInvalidArgument, index, len(t))
	}
	off := int64(t[index])
	headerSize := f.chunkHeaderSize(part)
	hdr, err := f.src.view(off, headerSize)
	if err != nil {
		return nil, nil, chunkErr(ErrTruncated, part, index)
	}
	c := xdr.NewCursor(hdr)
	if f.IsMultiPart() {
		pn, _ := c.ReadInt32()
		if int(pn) != part {
			return nil, nil, chunkErr(fmt.Errorf("%w: chunk claims part %d", ErrMalformedChunk, pn), part, index)
		}
	}
	coords := make([]int32, coordWords)
	for i := range coords {
		coords[i], _ = c.ReadInt32()
	}
	payloadLen, _ := c.ReadInt32()
	if payloadLen < 0 || off+int64(headerSize)+int64(payloadLen) > f.size {
		return nil, nil, chunkErr(fmt.Errorf("%w: payload size %d", ErrMalformedChunk, payloadLen), part, index)
	}
	payload, err := f.src.view(off+int64(headerSize), int(payloadLen))
	if err != nil {
		return nil, nil, chunkErr(ErrTruncated, part, index)
	}
	return coords, payload, nil
}

// ReadScanlineChunk returns the starting row and compressed payload of a
// scanline chunk. The payload may alias the file's memory; callers that
// keep it across reads must copy.
func (f *File) ReadScanlineChunk(part, index int) (y int, data []byte, err error) {
	if h := f.Header(part); h == nil || h.IsTiled() {
		return 0, nil, fmt.Errorf("%w: part %d is not a scanline part", ErrInvalidArgument, part)
	}
	coords, payload, err := f.readChunkPayload(part, index, 1)
	if err != nil {
		return 0, nil, err
	}
	return int(coords[0]), payload, nil
}

// ReadTileChunk returns the tile coordinates, level and compressed payload
// of a tile chunk.
func (f *File) ReadTileChunk(part, index int) (tileX, tileY, levelX, levelY int, data []byte, err error) {
	if h := f.Header(part); h == nil || !h.IsTiled() {
		return 0, 0, 0, 0, nil, fmt.Errorf("%w: part %d is not a tiled part", ErrInvalidArgument, part)
	}
	coords, payload, err := f.readChunkPayload(part, index, 4)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}
	return int(coords[0]), int(coords[1]), int(coords[2]), int(coords[3]), payload, nil
}
