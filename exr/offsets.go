package exr

import (
	"fmt"

	"github.com/patrickhulce/exrio/internal/xdr"
)

// OffsetTable holds the absolute byte offset of each chunk of one part, in
// the part's fixed enumeration order: increasing row for scanline parts,
// level-major then row then column for tiled parts.
type OffsetTable []uint64

// readOffsetTable reads count offsets.
func readOffsetTable(c *xdr.Cursor, count int) (OffsetTable, error) {
	t := make(OffsetTable, count)
	for i := range t {
		v, err := c.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("%w: offset table slot %d", ErrTruncated, i)
		}
		t[i] = v
	}
	return t, nil
}

// validate checks every offset against the file bounds. dataStart is the
// first byte past the offset tables; fileSize bounds the chunk region.
// A zero offset marks a chunk the writer never emitted; those and any
// offset that cannot hold a chunk header fail with ErrCorruptOffsetTable
// naming the slot.
func (t OffsetTable) validate(part int, dataStart, fileSize int64, headerSize int) error {
	for i, off := range t {
		if off == 0 {
			return fmt.Errorf("%w: part %d slot %d: missing chunk", ErrCorruptOffsetTable, part, i)
		}
		if int64(off) < dataStart || int64(off)+int64(headerSize) > fileSize {
			return fmt.Errorf("%w: part %d slot %d: offset %d outside file (data %d..%d)",
				ErrCorruptOffsetTable, part, i, off, dataStart, fileSize)
		}
	}
	return nil
}
