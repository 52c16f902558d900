//go:build rp2040 || rp2350

package logstore

import (
	"io/fs"
	"machine"

	"tinygo.org/x/tinyfs/littlefs"
)

// FlashFS is a littlefs volume on the free part of the board's QSPI flash.
type FlashFS struct {
	lfs *littlefs.LFS
}

// MountFlash mounts the volume, formatting it on first use, and creates dir.
func MountFlash(dir string) (*FlashFS, error) {
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	if err := lfs.Mount(); err != nil {
		println("[logstore] formatting flash volume")
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}
	if _, err := lfs.Stat(dir); err != nil {
		if err := lfs.Mkdir(dir, 0o777); err != nil {
			return nil, err
		}
	}
	return &FlashFS{lfs: lfs}, nil
}

// littlefs errors are its own codes, not io/fs ones. A failed Stat is taken
// as a missing entry; a failed open of an entry that does stat is reported
// as is, so a transient error never looks like a deleted store.

func (f *FlashFS) Stat(name string) (fs.FileInfo, error) {
	st, err := f.lfs.Stat(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return st, nil
}

func (f *FlashFS) OpenFile(name string, flag int, _ fs.FileMode) (File, error) {
	h, err := f.lfs.OpenFile(name, flag)
	if err != nil {
		if _, serr := f.lfs.Stat(name); serr != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	return h, nil
}

func (f *FlashFS) Rename(oldpath, newpath string) error { return f.lfs.Rename(oldpath, newpath) }

func (f *FlashFS) Remove(name string) error { return f.lfs.Remove(name) }
