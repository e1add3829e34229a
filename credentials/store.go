package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// DefaultPath is the name of the credential record on the flash filesystem.
const DefaultPath = "ap"

// Volume is the flash-backed filesystem that holds the credential record.
// See NewTinyFSVolume for the adapter over tinygo.org/x/tinyfs filesystems.
type Volume interface {
	Mount() error
	Unmount() error
	Format() error
	// OpenFile opens path with os.O_* flags.
	OpenFile(path string, flags int) (io.ReadWriteCloser, error)
}

// IOError is returned when the storage medium cannot be opened or the
// record cannot be read or written in full.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	msg := "credentials: " + e.Op + " " + e.Path
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IOError) Unwrap() error { return e.Err }

var errShortIO = errors.New("short record")

// StoreConfig configures a Store.
type StoreConfig struct {
	// Path of the record file. DefaultPath if empty.
	Path string
	// FormatOnMountError formats the volume when Save cannot mount it,
	// which is the case for flash that has never held a filesystem.
	FormatOnMountError bool
	Logger             *slog.Logger
}

// Store reads and writes the single credential record. The volume is only
// mounted for the duration of each operation.
type Store struct {
	vol    Volume
	path   string
	format bool
	logger *slog.Logger
	buf    [RecordSize]byte
}

func NewStore(vol Volume, cfg StoreConfig) *Store {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return &Store{
		vol:    vol,
		path:   cfg.Path,
		format: cfg.FormatOnMountError,
		logger: cfg.Logger,
	}
}

// Path returns the record file name.
func (s *Store) Path() string { return s.path }

// Load reads the persisted record. It fails with *IOError if the volume
// cannot be mounted, the record does not exist or is short.
func (s *Store) Load() (c Credentials, err error) {
	if err = s.vol.Mount(); err != nil {
		return c, &IOError{Op: "mount", Path: s.path, Err: err}
	}
	defer s.unmount()
	fp, err := s.vol.OpenFile(s.path, os.O_RDONLY)
	if err != nil {
		return c, &IOError{Op: "open", Path: s.path, Err: err}
	}
	defer fp.Close()
	n, err := io.ReadFull(fp, s.buf[:])
	if err != nil || n != RecordSize {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			err = errShortIO
		}
		return c, &IOError{Op: "read", Path: s.path, Err: err}
	}
	return UnmarshalRecord(s.buf[:])
}

// Save overwrites the persisted record with c. A short write fails with *IOError.
func (s *Store) Save(c Credentials) error {
	if err := MarshalRecord(s.buf[:], c); err != nil {
		return err
	}
	if err := s.mountForWrite(); err != nil {
		return &IOError{Op: "mount", Path: s.path, Err: err}
	}
	defer s.unmount()
	fp, err := s.vol.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return &IOError{Op: "create", Path: s.path, Err: err}
	}
	n, err := fp.Write(s.buf[:])
	cerr := fp.Close()
	if err == nil && n != RecordSize {
		err = errShortIO
	}
	if err == nil {
		err = cerr
	}
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) mountForWrite() error {
	err := s.vol.Mount()
	if err == nil || !s.format {
		return err
	}
	s.log(slog.LevelWarn, "store:format", slog.String("err", err.Error()))
	if err = s.vol.Format(); err != nil {
		return err
	}
	return s.vol.Mount()
}

func (s *Store) unmount() {
	if err := s.vol.Unmount(); err != nil {
		s.log(slog.LevelError, "store:unmount", slog.String("err", err.Error()))
	}
}

func (s *Store) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger != nil {
		s.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
