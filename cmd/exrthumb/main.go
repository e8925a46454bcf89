// exrthumb writes a PNG thumbnail for an OpenEXR file. The embedded
// preview attribute is used when present; otherwise the thumbnail is
// rendered from the first part's pixels.
//
// Usage:
//
//	exrthumb [--width N] [--height N] [--out FILE] [--render] <file>
package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/nfnt/resize"
	"github.com/spf13/pflag"

	"github.com/patrickhulce/exrio/exr"
)

func main() {
	flags := pflag.NewFlagSet("exrthumb", pflag.ContinueOnError)
	width := flags.Int("width", 256, "maximum thumbnail width")
	height := flags.Int("height", 256, "maximum thumbnail height")
	out := flags.String("out", "", "output path (default: input with .png extension)")
	render := flags.Bool("render", false, "render from pixels even when an embedded preview exists")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: exrthumb [--width N] [--height N] [--out FILE] [--render] <file>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	path := flags.Arg(0)
	if *out == "" {
		*out = strings.TrimSuffix(path, ".exr") + ".png"
	}
	if err := writeThumb(path, *out, *width, *height, *render); err != nil {
		fmt.Fprintf(os.Stderr, "exrthumb: %v\n", err)
		os.Exit(1)
	}
}

func writeThumb(path, out string, width, height int, render bool) error {
	f, err := exr.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var thumb image.Image
	if p, ok := f.Header(0).Preview(); ok && !render {
		thumb = resize.Thumbnail(uint(width), uint(height), exr.PreviewImage(&p), resize.Lanczos3)
	} else {
		img, err := exr.DecodeImage(f)
		if err != nil {
			return err
		}
		p, err := exr.GeneratePreview(img, width, height)
		if err != nil {
			return err
		}
		thumb = exr.PreviewImage(p)
	}

	of, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(of, thumb); err != nil {
		of.Close()
		os.Remove(out)
		return err
	}
	return of.Close()
}
