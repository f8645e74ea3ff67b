package fileops

import (
	"io"
	"os"
	"path/filepath"
)

// Mkdir creates a directory, parents included. An existing file at the
// path is a conflict; an existing directory is fine.
func Mkdir(absPath string) error {
	if st, err := os.Stat(absPath); err == nil {
		if st.IsDir() {
			return nil
		}
		return ErrConflict
	}
	return os.MkdirAll(absPath, 0o755)
}

// SaveUpload writes the reader's content to absPath, creating parent
// directories as needed. An existing destination is a conflict; a
// failed write removes the partial file.
func SaveUpload(absPath string, r io.Reader) (int64, error) {
	if _, err := os.Lstat(absPath); err == nil {
		return 0, ErrConflict
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	n, err := io.Copy(f, r)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(absPath)
		return 0, err
	}
	return n, nil
}

// Rename moves a file or directory. The destination must not exist.
func Rename(absSrc, absDst string) error {
	if _, err := os.Lstat(absSrc); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if _, err := os.Lstat(absDst); err == nil {
		return ErrConflict
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return err
	}
	return os.Rename(absSrc, absDst)
}

// Delete removes a file, or a directory when recursive is set. A
// non-empty directory without recursive is refused. Symlinks are
// removed as links, never followed.
func Delete(absPath string, recursive bool) error {
	st, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if !st.IsDir() {
		return os.Remove(absPath)
	}
	if recursive {
		return os.RemoveAll(absPath)
	}
	ents, err := os.ReadDir(absPath)
	if err != nil {
		return err
	}
	if len(ents) > 0 {
		return ErrDirNotEmpty
	}
	return os.Remove(absPath)
}
