package exr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes a caller can act on. Wrapped
// values carry locating context (part index, chunk coordinates, attribute
// name); match with errors.Is.
var (
	// ErrTruncated reports a byte source that ended before a read completed.
	ErrTruncated = errors.New("exr: truncated input")

	// ErrUnsupportedFormat reports a bad magic number, unrecognized version
	// flags, or an unknown compression id. Raised before any further parsing
	// is attempted.
	ErrUnsupportedFormat = errors.New("exr: unsupported format")

	// ErrMalformedAttribute reports an attribute whose declared size or
	// content disagrees with its type.
	ErrMalformedAttribute = errors.New("exr: malformed attribute")

	// ErrMissingRequiredAttribute reports a header lacking one of the
	// mandatory attributes.
	ErrMissingRequiredAttribute = errors.New("exr: missing required attribute")

	// ErrCorruptOffsetTable reports a chunk offset table entry that lies
	// outside the file or is inconsistent with the declared chunk count.
	ErrCorruptOffsetTable = errors.New("exr: corrupt offset table")

	// ErrMalformedChunk reports a chunk whose decompressed content is
	// inconsistent with the header's declared shape.
	ErrMalformedChunk = errors.New("exr: malformed chunk")

	// ErrHeaderFrozen reports a header mutation after the first chunk of its
	// part has been written.
	ErrHeaderFrozen = errors.New("exr: header frozen after first chunk")

	// ErrShapeMismatch reports a pixel array whose dimensions disagree with
	// the data window or channel count it is matched against.
	ErrShapeMismatch = errors.New("exr: shape mismatch")

	// ErrDtypeMismatch reports a pixel array element type that cannot carry
	// the channel types it is matched against without explicit conversion.
	ErrDtypeMismatch = errors.New("exr: dtype mismatch")

	// ErrInvalidArgument reports out-of-range coordinates, part indexes, or
	// nil required inputs.
	ErrInvalidArgument = errors.New("exr: invalid argument")
)

// attrErr wraps ErrMalformedAttribute with the attribute name.
func attrErr(name string, detail string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedAttribute, name, detail)
}

// chunkErr wraps err with part and chunk location context.
func chunkErr(err error, part, chunk int) error {
	return fmt.Errorf("%w (part %d, chunk %d)", err, part, chunk)
}
