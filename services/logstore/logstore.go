// Package logstore is the append-only record file on removable storage.
//
// Every mutating call opens, writes, syncs and closes the backing file so
// nothing is buffered across a deep-sleep or power-loss boundary. One mutex
// serializes the sampling path against the query surface. Creation and clear
// go through a temp file and a rename, so a reader sees either the old file or
// the new one, never a half-truncated store. The filesystem is pluggable: the
// host uses the OS, the Pico a littlefs volume on its own flash.
package logstore

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"envlogger/errcode"
	"envlogger/types"
)

type Config struct {
	// Dir is the storage mount point. It must exist; the store never creates it.
	Dir string
	// File is the record file name inside Dir.
	File string
	// ReseedHeader writes the header row into the fresh file on Clear.
	ReseedHeader bool
	// FS defaults to OSFS.
	FS FS
}

type Store struct {
	mu   sync.Mutex
	cfg  Config
	fs   FS
	path string
	tmp  string
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	fsys := cfg.FS
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Store{
		cfg:  cfg,
		fs:   fsys,
		path: filepath.Join(cfg.Dir, cfg.File),
		tmp:  filepath.Join(cfg.Dir, "."+cfg.File+".tmp"),
		log:  log,
	}
}

func (s *Store) Path() string { return s.path }

// EnsureInitialized creates the record file with its header row if it does
// not exist. Safe to call on every boot.
func (s *Store) EnsureInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMount(); err != nil {
		return err
	}
	_, err := s.fs.Stat(s.path)
	switch {
	case err == nil:
		s.log.Debug("record file already exists", zap.String("path", s.path))
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return errcode.Wrap(errcode.StoreUnavailable, "ensure_initialized", err)
	}
	if err := s.replaceLocked(types.RecordHeader); err != nil {
		return errcode.Wrap(errcode.StoreUnavailable, "ensure_initialized", err)
	}
	s.log.Info("record file created", zap.String("path", s.path))
	return nil
}

// Exists reports whether the record file is present.
func (s *Store) Exists() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsLocked()
}

func (s *Store) existsLocked() (bool, error) {
	_, err := s.fs.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errcode.Wrap(errcode.IOFailure, "exists", err)
}

// AppendReading serializes r and appends it.
func (s *Store) AppendReading(r types.Reading) error {
	return s.Append(types.FormatRecord(r))
}

// Append writes one serialized record at the end of the file. A failed write
// is truncated back so no partial record stays behind. A missing file is
// recreated with its header first.
func (s *Store) Append(record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.fs.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("record file missing, recreating", zap.String("path", s.path))
		if err = s.replaceLocked(types.RecordHeader); err == nil {
			st, err = s.fs.Stat(s.path)
		}
	}
	if err != nil {
		return errcode.Wrap(errcode.IOFailure, "append", err)
	}
	prev := st.Size()

	f, err := s.fs.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return errcode.Wrap(errcode.IOFailure, "append", err)
	}
	if _, err = io.WriteString(f, record); err == nil {
		err = syncFile(f)
	}
	if err != nil {
		if t, ok := f.(truncater); ok {
			if terr := t.Truncate(prev); terr != nil {
				s.log.Error("rollback of partial record failed", zap.Error(terr))
			}
		}
		_ = f.Close()
		return errcode.Wrap(errcode.IOFailure, "append", err)
	}
	if err := f.Close(); err != nil {
		return errcode.Wrap(errcode.IOFailure, "append", err)
	}
	s.log.Debug("record appended", zap.Int64("offset", prev), zap.Int("bytes", len(record)))
	return nil
}

// ReadAll returns the full file contents.
func (s *Store) ReadAll() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errcode.Wrap(errcode.NotFound, "read_all", err)
	}
	if err != nil {
		return nil, errcode.Wrap(errcode.IOFailure, "read_all", err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errcode.Wrap(errcode.IOFailure, "read_all", err)
	}
	return b, nil
}

// Export streams a consistent snapshot of the file to w. The lock is held
// only while opening: appends land past the snapshot size and Clear renames a
// new file into place, so the open handle keeps reading what it saw.
func (s *Store) Export(w io.Writer) (int64, error) {
	s.mu.Lock()
	st, err := s.fs.Stat(s.path)
	var f File
	if err == nil {
		f, err = s.fs.OpenFile(s.path, os.O_RDONLY, 0)
	}
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errcode.Wrap(errcode.NotFound, "export", err)
		}
		return 0, errcode.Wrap(errcode.IOFailure, "export", err)
	}
	defer f.Close()

	n, err := io.CopyN(w, f, st.Size())
	if err != nil {
		return n, errcode.Wrap(errcode.IOFailure, "export", err)
	}
	return n, nil
}

// Size returns the snapshot size used by Export, for Content-Length.
func (s *Store) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.fs.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, errcode.Wrap(errcode.NotFound, "size", err)
	}
	if err != nil {
		return 0, errcode.Wrap(errcode.IOFailure, "size", err)
	}
	return st.Size(), nil
}

// Clear replaces the store with an empty one (header-only with ReseedHeader).
// NotFound if no store exists; IOFailure if the replacement fails, in which
// case the previous file is left in place.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.existsLocked()
	if err != nil {
		return err
	}
	if !ok {
		return &errcode.E{C: errcode.NotFound, Op: "clear", Msg: s.path}
	}

	content := ""
	if s.cfg.ReseedHeader {
		content = types.RecordHeader
	}
	if err := s.replaceLocked(content); err != nil {
		return errcode.Wrap(errcode.IOFailure, "clear", err)
	}
	s.log.Info("record file cleared", zap.String("path", s.path), zap.Bool("header", s.cfg.ReseedHeader))
	return nil
}

func (s *Store) checkMount() error {
	st, err := s.fs.Stat(s.cfg.Dir)
	if err != nil {
		return errcode.Wrap(errcode.StoreUnavailable, "mount", err)
	}
	if !st.IsDir() {
		return &errcode.E{C: errcode.StoreUnavailable, Op: "mount", Msg: s.cfg.Dir + " is not a directory"}
	}
	return nil
}

// replaceLocked atomically installs content as the record file.
func (s *Store) replaceLocked(content string) error {
	f, err := s.fs.OpenFile(s.tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	cleanup := func() { _ = s.fs.Remove(s.tmp) }

	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := syncFile(f); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := s.fs.Rename(s.tmp, s.path); err != nil {
		cleanup()
		return err
	}
	return nil
}
