// Package memvol is an in-memory credential volume with failure injection,
// used by tests and the host simulator.
package memvol

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// ErrMedium is returned by injected failures.
var ErrMedium = errors.New("memvol: medium error")

// Volume holds whole files in memory. Files only become visible on Close.
type Volume struct {
	Files     map[string][]byte
	Formatted bool
	Mounted   bool
	// FailMount makes every Mount fail.
	FailMount bool
	// ShortWrite makes writes store only half of each buffer.
	ShortWrite bool
	Mounts     int
	Formats    int
}

// New returns a formatted, empty volume.
func New() *Volume {
	return &Volume{Files: make(map[string][]byte), Formatted: true}
}

func (v *Volume) Mount() error {
	if v.FailMount || !v.Formatted {
		return ErrMedium
	}
	v.Mounted = true
	v.Mounts++
	return nil
}

func (v *Volume) Unmount() error {
	v.Mounted = false
	return nil
}

func (v *Volume) Format() error {
	v.Formatted = true
	v.Formats++
	v.Files = make(map[string][]byte)
	return nil
}

func (v *Volume) OpenFile(path string, flags int) (io.ReadWriteCloser, error) {
	if !v.Mounted {
		return nil, ErrMedium
	}
	data, ok := v.Files[path]
	if !ok && flags&os.O_CREATE == 0 {
		return nil, os.ErrNotExist
	}
	if flags&os.O_TRUNC != 0 {
		data = nil
	}
	return &file{vol: v, path: path, r: bytes.NewReader(data), buf: data}, nil
}

type file struct {
	vol  *Volume
	path string
	r    *bytes.Reader
	buf  []byte
}

func (f *file) Read(b []byte) (int, error) { return f.r.Read(b) }

func (f *file) Write(b []byte) (int, error) {
	if f.vol.ShortWrite {
		b = b[:len(b)/2]
	}
	f.buf = append(f.buf, b...)
	return len(b), nil
}

func (f *file) Close() error {
	f.vol.Files[f.path] = f.buf
	return nil
}
