package credentials

import (
	"io"

	"tinygo.org/x/tinyfs"
)

// NewTinyFSVolume adapts a tinyfs filesystem, such as littlefs on the
// microcontroller's flash, to a Volume.
func NewTinyFSVolume(fs tinyfs.Filesystem) Volume {
	return tinyfsVolume{fs: fs}
}

type tinyfsVolume struct {
	fs tinyfs.Filesystem
}

func (v tinyfsVolume) Mount() error   { return v.fs.Mount() }
func (v tinyfsVolume) Unmount() error { return v.fs.Unmount() }
func (v tinyfsVolume) Format() error  { return v.fs.Format() }

func (v tinyfsVolume) OpenFile(path string, flags int) (io.ReadWriteCloser, error) {
	f, err := v.fs.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}
