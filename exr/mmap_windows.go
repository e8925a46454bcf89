//go:build windows
// +build windows

package exr

import (
	"errors"
	"os"
	"syscall"
	"unsafe"
)

// mmapFile is a read-only memory mapping of a whole file.
type mmapFile struct {
	data   []byte
	file   *os.File
	handle syscall.Handle
}

// openMmap maps path read-only via CreateFileMapping/MapViewOfFile.
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
	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, errors.New("exr: empty file")
	}
	handle, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, syscall.PAGE_READONLY,
		uint32(size>>32), uint32(size), nil)
	if err != nil {
		f.Close()
		return nil, err
	}
	ptr, err := syscall.MapViewOfFile(handle, syscall.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		syscall.CloseHandle(handle)
		f.Close()
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	return &mmapFile{data: data, file: f, handle: handle}, nil
}

// Close unmaps the view and closes the mapping and file handles.
func (m *mmapFile) Close() error {
	if m.data != nil {
		syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0])))
		m.data = nil
	}
	if m.handle != 0 {
		syscall.CloseHandle(m.handle)
		m.handle = 0
	}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		return err
	}
	return nil
}
