package exr

import (
	"fmt"
	"io"

	"github.com/patrickhulce/exrio/compression"
)

// ScanlineReader decodes scanline chunks of one part into a frame buffer.
type ScanlineReader struct {
	file   *File
	part   int
	header *Header
	fb     *FrameBuffer
	dw     Box2i
	codec  compression.Codec
	lines  int
}

// NewScanlineReader returns a reader for part 0 of a scanline file.
func NewScanlineReader(f *File) (*ScanlineReader, error) {
	return NewScanlineReaderPart(f, 0)
}

// NewScanlineReaderPart returns a reader for one scanline part.
func NewScanlineReaderPart(f *File, part int) (*ScanlineReader, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidArgument)
	}
	h := f.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if h.IsTiled() {
		return nil, fmt.Errorf("%w: part %d is tiled", ErrInvalidArgument, part)
	}
	codec, err := codecFor(h)
	if err != nil {
		return nil, err
	}
	return &ScanlineReader{
		file:   f,
		part:   part,
		header: h,
		dw:     h.DataWindow(),
		codec:  codec,
		lines:  codec.LinesPerChunk(),
	}, nil
}

// Header returns the part's header.
func (r *ScanlineReader) Header() *Header {
	return r.header
}

// DataWindow returns the part's data window.
func (r *ScanlineReader) DataWindow() Box2i {
	return r.dw
}

// SetFrameBuffer sets the destination slices for subsequent reads.
func (r *ScanlineReader) SetFrameBuffer(fb *FrameBuffer) {
	r.fb = fb
}

// ReadAll reads every scanline of the part.
func (r *ScanlineReader) ReadAll() error {
	return r.ReadPixels(int(r.dw.Min.Y), int(r.dw.Max.Y))
}

// ReadPixels decodes rows y1 through y2 inclusive into the frame buffer.
// Chunks are decompressed in parallel when the configured worker count and
// chunk count warrant it; each chunk scatters into disjoint rows, so no
// locking is needed on the destination.
func (r *ScanlineReader) ReadPixels(y1, y2 int) error {
	if r.fb == nil {
		return fmt.Errorf("%w: no frame buffer set", ErrInvalidArgument)
	}
	minY, maxY := int(r.dw.Min.Y), int(r.dw.Max.Y)
	if y1 < minY || y2 > maxY || y1 > y2 {
		return fmt.Errorf("%w: rows %d..%d outside data window", ErrInvalidArgument, y1, y2)
	}
	r.fillMissingChannels(y1, y2)

	firstChunk := (y1 - minY) / r.lines
	lastChunk := (y2 - minY) / r.lines
	n := lastChunk - firstChunk + 1

	return ParallelForWithError(n, func(i int) error {
		chunkY := minY + (firstChunk+i)*r.lines
		slot, err := scanlineSlot(r.header, chunkY)
		if err != nil {
			return err
		}
		y, data, err := r.file.ReadScanlineChunk(r.part, slot)
		if err != nil {
			return err
		}
		if y != chunkY {
			return chunkErr(fmt.Errorf("%w: chunk declares row %d, table slot implies %d",
				ErrMalformedChunk, y, chunkY), r.part, slot)
		}
		shape := scanlineShape(r.header, chunkY)
		raw, err := r.codec.Decompress(data, shape)
		if err != nil {
			return chunkErr(fmt.Errorf("%w: %v", ErrMalformedChunk, err), r.part, slot)
		}
		if err := scatterRaw(r.fb, shape, raw, y1, y2); err != nil {
			return chunkErr(err, r.part, slot)
		}
		// Uncompressed chunks decode to a view of the file data, which
		// must not go back into the pool.
		if !sameBacking(raw, data) {
			putChunkBuf(raw)
		}
		return nil
	})
}

// fillMissingChannels writes fill values into slices whose channels the
// file does not carry.
func (r *ScanlineReader) fillMissingChannels(y1, y2 int) {
	cl := r.header.Channels()
	for _, name := range r.fb.Names() {
		if cl.Has(name) {
			continue
		}
		s := r.fb.Get(name)
		count := sampledCount(int(r.dw.Min.X), int(r.dw.Max.X), s.XSampling)
		for y := firstSample(y1, s.YSampling); y <= y2; y += s.YSampling {
			s.fillRow(y, int(r.dw.Min.X), count)
		}
	}
}

// ScanlineWriter encodes frame buffer rows into scanline chunks.
type ScanlineWriter struct {
	writer *Writer
	part   int
	header *Header
	fb     *FrameBuffer
	dw     Box2i
	codec  compression.Codec
	lines  int
	owns   bool
}

// NewScanlineWriter returns a writer for a single-part scanline file on a
// seekable sink.
func NewScanlineWriter(w io.WriteSeeker, h *Header) (*ScanlineWriter, error) {
	fw, err := NewWriter(w, h)
	if err != nil {
		return nil, err
	}
	sw, err := NewScanlineWriterPart(fw, 0)
	if err != nil {
		return nil, err
	}
	sw.owns = true
	return sw, nil
}

// NewScanlineWriterPart returns a scanline writer over one part of an
// existing file writer.
func NewScanlineWriterPart(w *Writer, part int) (*ScanlineWriter, error) {
	h := w.Header(part)
	if h == nil {
		return nil, fmt.Errorf("%w: part %d", ErrInvalidArgument, part)
	}
	if h.IsTiled() {
		return nil, fmt.Errorf("%w: part %d is tiled", ErrInvalidArgument, part)
	}
	codec, err := codecFor(h)
	if err != nil {
		return nil, err
	}
	return &ScanlineWriter{
		writer: w,
		part:   part,
		header: h,
		dw:     h.DataWindow(),
		codec:  codec,
		lines:  codec.LinesPerChunk(),
	}, nil
}

// Header returns the part's header.
func (w *ScanlineWriter) Header() *Header {
	return w.header
}

// SetFrameBuffer sets the source slices for subsequent writes.
func (w *ScanlineWriter) SetFrameBuffer(fb *FrameBuffer) {
	w.fb = fb
}

// WriteAll writes every scanline of the part.
func (w *ScanlineWriter) WriteAll() error {
	return w.WritePixels(int(w.dw.Min.Y), int(w.dw.Max.Y))
}

// WritePixels encodes rows y1 through y2 inclusive. The range must cover
// whole chunks: y1 must start a chunk and y2 must end one (or be the last
// data window row). Chunks are compressed in parallel and written in
// order.
func (w *ScanlineWriter) WritePixels(y1, y2 int) error {
	if w.fb == nil {
		return fmt.Errorf("%w: no frame buffer set", ErrInvalidArgument)
	}
	minY, maxY := int(w.dw.Min.Y), int(w.dw.Max.Y)
	if y1 < minY || y2 > maxY || y1 > y2 {
		return fmt.Errorf("%w: rows %d..%d outside data window", ErrInvalidArgument, y1, y2)
	}
	if (y1-minY)%w.lines != 0 {
		return fmt.Errorf("%w: row %d does not start a chunk", ErrInvalidArgument, y1)
	}
	if y2 != maxY && (y2-minY+1)%w.lines != 0 {
		return fmt.Errorf("%w: row %d does not end a chunk", ErrInvalidArgument, y2)
	}
	cl := w.header.Channels()
	for i := 0; i < cl.Len(); i++ {
		if w.fb.Get(cl.At(i).Name) == nil {
			return fmt.Errorf("%w: frame buffer lacks channel %q", ErrInvalidArgument, cl.At(i).Name)
		}
	}

	firstChunk := (y1 - minY) / w.lines
	n := (y2-y1)/w.lines + 1

	compressed := make([][]byte, n)
	err := ParallelForWithError(n, func(i int) error {
		chunkY := minY + (firstChunk+i)*w.lines
		shape := scanlineShape(w.header, chunkY)
		raw := gatherRaw(w.fb, shape)
		out, err := w.codec.Compress(raw, shape)
		if err != nil {
			return chunkErr(err, w.part, firstChunk+i)
		}
		// Codecs may return their input unchanged, in which case the raw
		// buffer stays live until the chunk is written.
		if !sameBacking(out, raw) {
			putChunkBuf(raw)
		}
		compressed[i] = out
		return nil
	})
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		chunkY := minY + (firstChunk+i)*w.lines
		if err := w.writer.WriteScanlineChunk(w.part, chunkY, compressed[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close finalizes the file when this writer owns the underlying Writer.
func (w *ScanlineWriter) Close() error {
	if w.owns {
		return w.writer.Close()
	}
	return nil
}
