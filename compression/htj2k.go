package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/mrjoshuak/go-jpeg2000"
)

// HTJ2K wraps each HALF channel in a lossless high-throughput JPEG 2000
// codestream; UINT and FLOAT planes are deflated as-is since their bit
// patterns do not survive the 16-bit sample path. The chunk carries a
// small big-endian header ("HT" magic, payload length, channel map)
// followed by one length-prefixed blob per channel.

const (
	htj2kMagic      uint16 = 0x4854
	htj2kHeaderSize        = 6
)

type htj2kCodec struct {
	id    int
	lines int
}

func init() {
	register(htj2kCodec{id: IDHTJ2K256, lines: 256})
	register(htj2kCodec{id: IDHTJ2K32, lines: 32})
}

func (c htj2kCodec) ID() int            { return c.id }
func (c htj2kCodec) LinesPerChunk() int { return c.lines }
func (htj2kCodec) Lossless() bool       { return true }

func htj2kOptions() *jpeg2000.Options {
	return &jpeg2000.Options{
		Format:         jpeg2000.FormatJ2K,
		Lossless:       true,
		HighThroughput: true,
		HTBlockWidth:   32,
		HTBlockHeight:  32,
		NumResolutions: 6,
	}
}

func (c htj2kCodec) Compress(src []byte, shape ChunkShape) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	chans, _ := pizLayout(shape)
	halves, raws := dwaGatherPlanes(src, shape, chans)

	blobs := make([][]byte, len(chans))
	for i, ch := range shape.Channels {
		g := chans[i]
		if ch.Type != SampleHalf {
			blob, err := deflate(raws[i], shape.ZipLevel)
			if err != nil {
				return nil, err
			}
			blobs[i] = blob
			continue
		}

		img := image.NewGray16(image.Rect(0, 0, g.nx, g.ny))
		for j, v := range halves[i] {
			img.Pix[2*j] = byte(v >> 8)
			img.Pix[2*j+1] = byte(v)
		}
		var buf bytes.Buffer
		if err := jpeg2000.Encode(&buf, img, htj2kOptions()); err != nil {
			return nil, fmt.Errorf("htj2k: encode %s: %w", ch.Name, err)
		}
		blobs[i] = buf.Bytes()
	}

	payloadLen := 2 + len(chans)*2
	size := htj2kHeaderSize + payloadLen
	for _, b := range blobs {
		size += 4 + len(b)
	}

	out := make([]byte, 0, size)
	var hdr [8]byte
	binary.BigEndian.PutUint16(hdr[0:], htj2kMagic)
	binary.BigEndian.PutUint32(hdr[2:], uint32(payloadLen))
	binary.BigEndian.PutUint16(hdr[6:], uint16(len(chans)))
	out = append(out, hdr[:8]...)
	for i := range chans {
		out = append(out, byte(i>>8), byte(i))
	}
	for _, b := range blobs {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		out = append(out, n[:]...)
		out = append(out, b...)
	}
	return out, nil
}

func (c htj2kCodec) Decompress(src []byte, shape ChunkShape) ([]byte, error) {
	rawSize := shape.RawSize()
	if rawSize == 0 {
		return nil, nil
	}
	if len(src) < htj2kHeaderSize {
		return nil, fmt.Errorf("%w: htj2k chunk shorter than header", ErrMalformed)
	}
	if binary.BigEndian.Uint16(src) != htj2kMagic {
		return nil, fmt.Errorf("%w: bad htj2k magic", ErrMalformed)
	}
	payloadLen := int(binary.BigEndian.Uint32(src[2:]))
	if payloadLen < 2 || htj2kHeaderSize+payloadLen > len(src) {
		return nil, fmt.Errorf("%w: htj2k payload length out of range", ErrMalformed)
	}
	count := int(binary.BigEndian.Uint16(src[6:]))
	if count != len(shape.Channels) || payloadLen < 2+count*2 {
		return nil, fmt.Errorf("%w: htj2k channel map does not match header", ErrMalformed)
	}

	chans, _ := pizLayout(shape)
	halves := make([][]uint16, len(chans))
	raws := make([][]byte, len(chans))

	off := htj2kHeaderSize + payloadLen
	for i, ch := range shape.Channels {
		if off+4 > len(src) {
			return nil, fmt.Errorf("%w: htj2k chunk truncated", ErrMalformed)
		}
		n := int(binary.BigEndian.Uint32(src[off:]))
		off += 4
		if n < 0 || off+n > len(src) {
			return nil, fmt.Errorf("%w: htj2k blob length out of range", ErrMalformed)
		}
		blob := src[off : off+n]
		off += n

		g := chans[i]
		if ch.Type != SampleHalf {
			raw, err := inflate(blob, g.nx*g.ny*4)
			if err != nil {
				return nil, err
			}
			raws[i] = raw
			continue
		}

		img, err := jpeg2000.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: htj2k decode %s: %v", ErrMalformed, ch.Name, err)
		}
		b := img.Bounds()
		if b.Dx() != g.nx || b.Dy() != g.ny {
			return nil, fmt.Errorf("%w: htj2k plane for %s is %dx%d, want %dx%d",
				ErrMalformed, ch.Name, b.Dx(), b.Dy(), g.nx, g.ny)
		}

		p := make([]uint16, g.nx*g.ny)
		if gray, ok := img.(*image.Gray16); ok {
			for j := range p {
				p[j] = uint16(gray.Pix[2*j])<<8 | uint16(gray.Pix[2*j+1])
			}
		} else {
			for y := 0; y < g.ny; y++ {
				for x := 0; x < g.nx; x++ {
					gc := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
					p[y*g.nx+x] = gc.Y
				}
			}
		}
		halves[i] = p
	}

	dst := make([]byte, rawSize)
	dwaScatterPlanes(dst, shape, chans, halves, raws)
	return dst, nil
}
