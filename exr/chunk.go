package exr

import (
	"fmt"

	"github.com/patrickhulce/exrio/compression"
)

// chunkShape builds the codec-facing description of one chunk: absolute
// position and extent plus the channel layout in channel-list order.
func chunkShape(h *Header, minX, minY, width, height int) compression.ChunkShape {
	cl := h.Channels()
	chans := make([]compression.ChannelDesc, cl.Len())
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		chans[i] = compression.ChannelDesc{
			Name:      ch.Name,
			Type:      compression.SampleType(ch.Type),
			XSampling: int(ch.XSampling),
			YSampling: int(ch.YSampling),
			Linear:    ch.PLinear,
		}
	}
	zipLevel := h.ZipCompressionLevel()
	if zipLevel == 0 {
		zipLevel = -1
	}
	return compression.ChunkShape{
		MinX: minX, MinY: minY,
		Width: width, Height: height,
		Channels: chans,
		ZipLevel: zipLevel,
		DWALevel: h.DWACompressionLevel(),
	}
}

// scanlineShape returns the shape of the scanline chunk starting at row y.
func scanlineShape(h *Header, y int) compression.ChunkShape {
	dw := h.DataWindow()
	lines := h.Compression().ScanlinesPerChunk()
	height := lines
	if y+height-1 > int(dw.Max.Y) {
		height = int(dw.Max.Y) - y + 1
	}
	return chunkShape(h, int(dw.Min.X), y, dw.Width(), height)
}

// tileShape returns the shape of one tile chunk. Tile pixel coordinates
// live in level space, which shares the data window's origin.
func tileShape(h *Header, tileX, tileY, levelX, levelY int) compression.ChunkShape {
	td, _ := h.Tiles()
	dw := h.DataWindow()
	lw := h.LevelWidth(levelX)
	lh := h.LevelHeight(levelY)
	minX := int(dw.Min.X) + tileX*int(td.XSize)
	minY := int(dw.Min.Y) + tileY*int(td.YSize)
	w := int(td.XSize)
	if rem := lw - tileX*int(td.XSize); rem < w {
		w = rem
	}
	ht := int(td.YSize)
	if rem := lh - tileY*int(td.YSize); rem < ht {
		ht = rem
	}
	return chunkShape(h, minX, minY, w, ht)
}

// codecFor resolves the header's compression id to a codec.
func codecFor(h *Header) (compression.Codec, error) {
	codec, err := compression.ForID(int(h.Compression()))
	if err != nil {
		return nil, ErrUnsupportedFormat
	}
	return codec, nil
}

// scatterRaw distributes a chunk's raw bytes into the frame buffer,
// restricted to rows within [y1, y2]. The raw layout is rows by channels
// in channel-list order, each channel's present samples packed
// little-endian.
func scatterRaw(fb *FrameBuffer, shape compression.ChunkShape, raw []byte, y1, y2 int) error {
	pos := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			count := shape.RowSamples(ch)
			nbytes := count * ch.Type.Size()
			if pos+nbytes > len(raw) {
				return fmt.Errorf("%w: raw chunk shorter than channel layout", ErrMalformedChunk)
			}
			if s := fb.Get(ch.Name); s != nil && y >= y1 && y <= y2 {
				s.storeRow(y, shape.MinX, count, raw[pos:pos+nbytes])
			}
			pos += nbytes
		}
	}
	return nil
}

// gatherRaw assembles a chunk's raw byte layout from the frame buffer.
// Every channel in the shape must have a slice.
func gatherRaw(fb *FrameBuffer, shape compression.ChunkShape) []byte {
	raw := getChunkBuf(shape.RawSize())
	pos := 0
	for y := shape.MinY; y < shape.MinY+shape.Height; y++ {
		for _, ch := range shape.Channels {
			if !shape.RowPresent(ch, y) {
				continue
			}
			count := shape.RowSamples(ch)
			nbytes := count * ch.Type.Size()
			fb.Get(ch.Name).loadRow(y, shape.MinX, count, raw[pos:pos+nbytes])
			pos += nbytes
		}
	}
	return raw
}
