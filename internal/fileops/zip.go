package fileops

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ZipItem names one file or directory to include in an archive.
type ZipItem struct {
	Abs  string
	Name string
}

// SanitizeZipBaseName cleans a requested archive name down to a safe
// filename without extension.
func SanitizeZipBaseName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".zip")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "download"
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

func sanitizeZipPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	p = strings.ReplaceAll(p, "\x00", "")
	p = strings.Trim(p, "/")
	if p == "." || p == "" {
		return ""
	}
	if len(p) > 240 {
		p = p[:240]
	}
	return p
}

// BuildZip spools a deflate zip of the items into spoolDir and returns
// the archive path and size. The caller streams the file and removes
// it afterwards. Directories are added recursively; name collisions at
// the archive top level get a numeric suffix. Unreadable files are
// skipped so one bad entry cannot abort the download.
func BuildZip(ctx context.Context, items []ZipItem, spoolDir string) (string, int64, error) {
	if len(items) == 0 {
		return "", 0, ErrNotFound
	}
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	for _, it := range items {
		if _, err := os.Stat(it.Abs); err != nil {
			if os.IsNotExist(err) {
				return "", 0, ErrNotFound
			}
			return "", 0, err
		}
	}

	spool := filepath.Join(spoolDir, "zip-"+uuid.NewString()+".zip")
	f, err := os.Create(spool)
	if err != nil {
		return "", 0, err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(spool)
	}

	zw := zip.NewWriter(f)
	used := map[string]int{}
	uniqueTop := func(base string) string {
		base = sanitizeZipPath(base)
		if base == "" {
			base = "item"
		}
		n := used[base]
		used[base] = n + 1
		if n == 0 {
			return base
		}
		ext := filepath.Ext(base)
		return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(base, ext), n, ext)
	}

	addFile := func(abs, zipPath string, mod time.Time) error {
		h := &zip.FileHeader{Name: zipPath, Method: zip.Deflate, Modified: mod}
		wr, err := zw.CreateHeader(h)
		if err != nil {
			return err
		}
		src, err := os.Open(abs)
		if err != nil {
			return nil
		}
		_, err = io.Copy(wr, src)
		_ = src.Close()
		return err
	}

	addDir := func(baseAbs, baseRel string) error {
		return filepath.WalkDir(baseAbs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			relp, err := filepath.Rel(baseAbs, p)
			if err != nil {
				return nil
			}
			zipPath := sanitizeZipPath(filepath.ToSlash(filepath.Join(baseRel, relp)))
			if zipPath == "" {
				return nil
			}
			mod := time.Now()
			if info, err := d.Info(); err == nil {
				mod = info.ModTime()
			}
			return addFile(p, zipPath, mod)
		})
	}

	for _, it := range items {
		if ctx.Err() != nil {
			cleanup()
			return "", 0, ctx.Err()
		}
		st, err := os.Stat(it.Abs)
		if err != nil {
			continue
		}
		name := it.Name
		if name == "" {
			name = filepath.Base(it.Abs)
		}
		top := uniqueTop(name)
		if st.IsDir() {
			err = addDir(it.Abs, top)
		} else {
			err = addFile(it.Abs, top, st.ModTime())
		}
		if err != nil {
			cleanup()
			return "", 0, err
		}
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return "", 0, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		cleanup()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(spool)
		return "", 0, err
	}
	return spool, size, nil
}
