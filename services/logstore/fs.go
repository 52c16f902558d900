package logstore

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the filesystem holding the record file.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// File is an open handle. Sync and Truncate(int64) are used when the
// implementation has them.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

type syncer interface{ Sync() error }

type truncater interface{ Truncate(size int64) error }

// OSFS is the host filesystem, typically an SD card mount.
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFS) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Rename also syncs the parent directory so the new entry survives power loss.
func (OSFS) Rename(oldpath, newpath string) error {
	if err := os.Rename(oldpath, newpath); err != nil {
		return err
	}
	syncDir(filepath.Dir(newpath))
	return nil
}

func (OSFS) Remove(name string) error { return os.Remove(name) }

// syncDir persists a rename. Not every filesystem supports it (FAT on an SD
// card does not), so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func syncFile(f File) error {
	if s, ok := f.(syncer); ok {
		return s.Sync()
	}
	return nil
}
