package exr

import "fmt"

// PartNames returns the name attribute of every part, in file order.
// Single-part files without a name attribute yield one empty string.
func PartNames(f *File) []string {
	names := make([]string, f.NumParts())
	for i := range names {
		names[i] = f.Header(i).Name()
	}
	return names
}

// FindPart returns the index of the part with the given name.
func FindPart(f *File, name string) (int, error) {
	for i := 0; i < f.NumParts(); i++ {
		if f.Header(i).Name() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no part named %q", ErrInvalidArgument, name)
}
