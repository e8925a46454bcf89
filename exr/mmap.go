//go:build !windows
// +build !windows

package exr

import (
	"errors"
	"os"
	"syscall"
)

// mmapFile is a read-only memory mapping of a whole file. Chunk payload
// views taken from it are zero-copy.
type mmapFile struct {
	data []byte
	file *os.File
}

// openMmap maps path read-only. Empty files are refused so the caller
// falls back to the positional reader, which reports truncation uniformly.
func openMmap(path string) (*mmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, errors.New("exr: empty file")
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mmapFile{data: data, file: f}, nil
}

// Close unmaps the file and closes the handle.
func (m *mmapFile) Close() error {
	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
	}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		return err
	}
	return nil
}
