// exrinfo prints the structure of OpenEXR files: parts, header
// attributes, channel tables, and optionally chunk offset tables.
//
// Usage:
//
//	exrinfo [--part N] [--offsets] <file> [<file> ...]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/patrickhulce/exrio/exr"
)

func main() {
	flags := pflag.NewFlagSet("exrinfo", pflag.ContinueOnError)
	part := flags.Int("part", -1, "print only this part (default: all)")
	offsets := flags.Bool("offsets", false, "print chunk offset tables")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: exrinfo [--part N] [--offsets] <file> [<file> ...]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	exit := 0
	for _, path := range flags.Args() {
		if err := printFile(path, *part, *offsets); err != nil {
			fmt.Fprintf(os.Stderr, "exrinfo: %s: %v\n", path, err)
			exit = 1
		}
	}
	os.Exit(exit)
}

func printFile(path string, part int, offsets bool) error {
	f, err := exr.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("%s:\n", path)
	fmt.Printf("  version %d", f.Version()&0xff)
	if f.IsMultiPart() {
		fmt.Printf(", %d parts", f.NumParts())
	}
	fmt.Println()

	if part >= f.NumParts() {
		return fmt.Errorf("part %d out of range (file has %d)", part, f.NumParts())
	}
	for i := 0; i < f.NumParts(); i++ {
		if part >= 0 && i != part {
			continue
		}
		printPart(f, i, offsets)
	}
	return nil
}

func printPart(f *exr.File, part int, offsets bool) {
	h := f.Header(part)
	fmt.Printf("\n part %d", part)
	if name := h.Name(); name != "" {
		fmt.Printf(" %q", name)
	}
	fmt.Println(":")

	for i := 0; i < h.Len(); i++ {
		a := h.At(i)
		fmt.Printf("  %s (%s): %s\n", a.Name, a.Type, formatValue(a))
	}

	cl := h.Channels()
	fmt.Printf("  %d channel(s):\n", cl.Len())
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		fmt.Printf("    %-20s %-5s sampling %dx%d\n", ch.Name, ch.Type, ch.XSampling, ch.YSampling)
	}

	if offsets {
		table := f.Offsets(part)
		fmt.Printf("  %d chunk offset(s):\n", len(table))
		for i, off := range table {
			fmt.Printf("    [%4d] %d\n", i, off)
		}
	}
}

func formatValue(a *exr.Attribute) string {
	switch v := a.Value.(type) {
	case *exr.ChannelList:
		return fmt.Sprintf("%d channels", v.Len())
	case exr.Box2i:
		return fmt.Sprintf("(%d %d) - (%d %d)", v.Min.X, v.Min.Y, v.Max.X, v.Max.Y)
	case exr.Box2f:
		return fmt.Sprintf("(%g %g) - (%g %g)", v.Min.X, v.Min.Y, v.Max.X, v.Max.Y)
	case exr.Compression:
		return v.String()
	case exr.LineOrder:
		return v.String()
	case exr.TileDescription:
		return fmt.Sprintf("%dx%d mode %d rounding %d", v.XSize, v.YSize, v.Mode, v.Rounding)
	case exr.Preview:
		return fmt.Sprintf("%dx%d preview", v.Width, v.Height)
	case []byte:
		return fmt.Sprintf("%d opaque bytes", len(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}
