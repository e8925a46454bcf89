package exr

import (
	"fmt"
	"io"

	"github.com/patrickhulce/exrio/compression"
)

// TiledReader decodes tile chunks of one part into a frame buffer.
//
// Tile pixel coordinates live in level space: every level's window starts
// at the data window's minimum, so a frame buffer for level (lx, ly) should
// cover LevelWidth(lx) by LevelHeight(ly) pixels from that origin.
type TiledReader struct {
	file   *File
	part   int
	header *Header
	fb     *FrameBuffer
	dw     Box2i
	td     TileDescription
	codec  compression.Codec
}

// NewTiledReader returns a reader for part 0 of a tiled file.
func NewTiledReader(f *File) (*TiledReader, error) {
	return NewTiledReaderPart(f, 0)
}

// NewTiledReaderPart returns a reader for one tiled part.
func NewTiledReaderPart(f *File, part int) (*TiledReader, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidArgument)
	}
	h := f.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	td, ok := h.Tiles()
	if !ok {
		return nil, fmt.Errorf("%w: part %d is not tiled", ErrInvalidArgument, part)
	}
	codec, err := codecFor(h)
	if err != nil {
		return nil, err
	}
	return &TiledReader{
		file:   f,
		part:   part,
		header: h,
		dw:     h.DataWindow(),
		td:     td,
		codec:  codec,
	}, nil
}

// Header returns the part's header.
func (r *TiledReader) Header() *Header { return r.header }

// DataWindow returns the part's data window.
func (r *TiledReader) DataWindow() Box2i { return r.dw }

// TileDescription returns the part's tile geometry.
func (r *TiledReader) TileDescription() TileDescription { return r.td }

// LevelMode returns the part's resolution-level mode.
func (r *TiledReader) LevelMode() LevelMode { return r.td.Mode }

// NumXLevels returns the level count along X.
func (r *TiledReader) NumXLevels() int { return r.header.NumXLevels() }

// NumYLevels returns the level count along Y.
func (r *TiledReader) NumYLevels() int { return r.header.NumYLevels() }

// LevelWidth returns the data width of X-level lx.
func (r *TiledReader) LevelWidth(lx int) int { return r.header.LevelWidth(lx) }

// LevelHeight returns the data height of Y-level ly.
func (r *TiledReader) LevelHeight(ly int) int { return r.header.LevelHeight(ly) }

// NumXTiles returns the tile column count at X-level lx.
func (r *TiledReader) NumXTiles(lx int) int { return r.header.NumXTiles(lx) }

// NumYTiles returns the tile row count at Y-level ly.
func (r *TiledReader) NumYTiles(ly int) int { return r.header.NumYTiles(ly) }

// SetFrameBuffer sets the destination slices for subsequent reads.
func (r *TiledReader) SetFrameBuffer(fb *FrameBuffer) {
	r.fb = fb
}

// ReadTile reads one tile at level 0.
func (r *TiledReader) ReadTile(tileX, tileY int) error {
	return r.ReadTileLevel(tileX, tileY, 0, 0)
}

// ReadTileLevel reads one tile at the given resolution level.
func (r *TiledReader) ReadTileLevel(tileX, tileY, levelX, levelY int) error {
	if r.fb == nil {
		return fmt.Errorf("%w: no frame buffer set", ErrInvalidArgument)
	}
	slot, err := tileSlot(r.header, tileX, tileY, levelX, levelY)
	if err != nil {
		return err
	}
	dx, dy, lx, ly, data, err := r.file.ReadTileChunk(r.part, slot)
	if err != nil {
		return err
	}
	if dx != tileX || dy != tileY || lx != levelX || ly != levelY {
		return chunkErr(fmt.Errorf("%w: chunk declares tile (%d,%d) level (%d,%d)",
			ErrMalformedChunk, dx, dy, lx, ly), r.part, slot)
	}
	shape := tileShape(r.header, tileX, tileY, levelX, levelY)
	raw, err := r.codec.Decompress(data, shape)
	if err != nil {
		return chunkErr(fmt.Errorf("%w: %v", ErrMalformedChunk, err), r.part, slot)
	}
	if err := scatterRaw(r.fb, shape, raw, shape.MinY, shape.MinY+shape.Height-1); err != nil {
		return chunkErr(err, r.part, slot)
	}
	if !sameBacking(raw, data) {
		putChunkBuf(raw)
	}
	return nil
}

// ReadTiles reads an inclusive tile range at level 0.
func (r *TiledReader) ReadTiles(tileX1, tileY1, tileX2, tileY2 int) error {
	return r.ReadTilesLevel(tileX1, tileY1, tileX2, tileY2, 0, 0)
}

// ReadTilesLevel reads an inclusive tile range at one level, decoding
// tiles in parallel when configured.
func (r *TiledReader) ReadTilesLevel(tileX1, tileY1, tileX2, tileY2, levelX, levelY int) error {
	if tileX1 > tileX2 || tileY1 > tileY2 {
		return fmt.Errorf("%w: empty tile range", ErrInvalidArgument)
	}
	nx := tileX2 - tileX1 + 1
	ny := tileY2 - tileY1 + 1
	return ParallelForWithError(nx*ny, func(i int) error {
		return r.ReadTileLevel(tileX1+i%nx, tileY1+i/nx, levelX, levelY)
	})
}

// ReadLevel reads every tile of one level.
func (r *TiledReader) ReadLevel(levelX, levelY int) error {
	if levelX < 0 || levelX >= r.NumXLevels() || levelY < 0 || levelY >= r.NumYLevels() {
		return fmt.Errorf("%w: level (%d, %d)", ErrInvalidArgument, levelX, levelY)
	}
	return r.ReadTilesLevel(0, 0, r.NumXTiles(levelX)-1, r.NumYTiles(levelY)-1, levelX, levelY)
}

// NewTiledHeader returns a header for a width x height tiled image with
// the given tile size and a single resolution level.
func NewTiledHeader(width, height, tileWidth, tileHeight int) *Header {
	h := NewHeader(width, height)
	h.mustSet(AttrNameTiles, TypeTileDesc, TileDescription{
		XSize: uint32(tileWidth),
		YSize: uint32(tileHeight),
		Mode:  LevelModeOne,
	})
	h.mustSet(AttrNameLineOrder, TypeLineOrder, LineOrderIncreasingY)
	return h
}

// TiledWriter encodes frame buffer pixels into tile chunks.
type TiledWriter struct {
	writer *Writer
	part   int
	header *Header
	fb     *FrameBuffer
	codec  compression.Codec
	owns   bool
}

// NewTiledWriter returns a writer for a single-part tiled file on a
// seekable sink.
func NewTiledWriter(w io.WriteSeeker, h *Header) (*TiledWriter, error) {
	fw, err := NewWriter(w, h)
	if err != nil {
		return nil, err
	}
	tw, err := NewTiledWriterPart(fw, 0)
	if err != nil {
		return nil, err
	}
	tw.owns = true
	return tw, nil
}

// NewTiledWriterPart returns a tiled writer over one part of an existing
// file writer.
func NewTiledWriterPart(w *Writer, part int) (*TiledWriter, error) {
	h := w.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if _, ok := h.Tiles(); !ok {
		return nil, fmt.Errorf("%w: part %d is not tiled", ErrInvalidArgument, part)
	}
	codec, err := codecFor(h)
	if err != nil {
		return nil, err
	}
	return &TiledWriter{writer: w, part: part, header: h, codec: codec}, nil
}

// Header returns the part's header.
func (w *TiledWriter) Header() *Header { return w.header }

// NumXLevels returns the level count along X.
func (w *TiledWriter) NumXLevels() int { return w.header.NumXLevels() }

// NumYLevels returns the level count along Y.
func (w *TiledWriter) NumYLevels() int { return w.header.NumYLevels() }

// NumXTiles returns the tile column count at X-level lx.
func (w *TiledWriter) NumXTiles(lx int) int { return w.header.NumXTiles(lx) }

// NumYTiles returns the tile row count at Y-level ly.
func (w *TiledWriter) NumYTiles(ly int) int { return w.header.NumYTiles(ly) }

// SetFrameBuffer sets the source slices for subsequent writes. The slices
// must cover the level being written, in level space.
func (w *TiledWriter) SetFrameBuffer(fb *FrameBuffer) {
	w.fb = fb
}

// WriteTile writes one tile at level 0.
func (w *TiledWriter) WriteTile(tileX, tileY int) error {
	return w.WriteTileLevel(tileX, tileY, 0, 0)
}

// WriteTileLevel writes one tile at the given resolution level.
func (w *TiledWriter) WriteTileLevel(tileX, tileY, levelX, levelY int) error {
	if w.fb == nil {
		return fmt.Errorf("%w: no frame buffer set", ErrInvalidArgument)
	}
	if _, err := tileSlot(w.header, tileX, tileY, levelX, levelY); err != nil {
		return err
	}
	cl := w.header.Channels()
	for i := 0; i < cl.Len(); i++ {
		if w.fb.Get(cl.At(i).Name) == nil {
			return fmt.Errorf("%w: frame buffer lacks channel %q", ErrInvalidArgument, cl.At(i).Name)
		}
	}
	shape := tileShape(w.header, tileX, tileY, levelX, levelY)
	raw := gatherRaw(w.fb, shape)
	data, err := w.codec.Compress(raw, shape)
	if err != nil {
		return err
	}
	err = w.writer.WriteTileChunk(w.part, tileX, tileY, levelX, levelY, data)
	// WriteTileChunk copies data, so raw is reusable even when the codec
	// returned it unchanged.
	putChunkBuf(raw)
	return err
}

// WriteTiles writes an inclusive tile range at level 0.
func (w *TiledWriter) WriteTiles(tileX1, tileY1, tileX2, tileY2 int) error {
	return w.WriteTilesLevel(tileX1, tileY1, tileX2, tileY2, 0, 0)
}

// WriteTilesLevel writes an inclusive tile range at one level.
func (w *TiledWriter) WriteTilesLevel(tileX1, tileY1, tileX2, tileY2, levelX, levelY int) error {
	for ty := tileY1; ty <= tileY2; ty++ {
		for tx := tileX1; tx <= tileX2; tx++ {
			if err := w.WriteTileLevel(tx, ty, levelX, levelY); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteLevel writes every tile of one level from the current frame buffer.
func (w *TiledWriter) WriteLevel(levelX, levelY int) error {
	if levelX < 0 || levelX >= w.NumXLevels() || levelY < 0 || levelY >= w.NumYLevels() {
		return fmt.Errorf("%w: level (%d, %d)", ErrInvalidArgument, levelX, levelY)
	}
	return w.WriteTilesLevel(0, 0, w.NumXTiles(levelX)-1, w.NumYTiles(levelY)-1, levelX, levelY)
}

// Close finalizes the file when this writer owns the underlying Writer.
func (w *TiledWriter) Close() error {
	if w.owns {
		return w.writer.Close()
	}
	return nil
}
