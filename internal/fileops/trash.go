package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TrashDirName is the per-root directory holding soft-deleted entries.
const TrashDirName = ".trash"

// TrashEntry describes one soft-deleted item.
type TrashEntry struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	IsDir     bool   `json:"is_dir"`
	Size      int64  `json:"size"`
	DeletedAt int64  `json:"deleted_at"`
}

// trashToken builds "<unix_ts>_<name>" and resolves collisions by
// attaching a counter to the timestamp ("<unix_ts>-<n>_<name>"), so
// the original name survives intact after the first underscore.
func trashToken(dir, name string, now time.Time) string {
	token := fmt.Sprintf("%d_%s", now.Unix(), name)
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(dir, token)); os.IsNotExist(err) {
			return token
		}
		token = fmt.Sprintf("%d-%d_%s", now.Unix(), i, name)
	}
}

func validToken(token string) bool {
	if token == "" || token == "." || token == ".." {
		return false
	}
	return !strings.ContainsAny(token, "/\\\x00")
}

// TrashMove moves a file or directory into the root's trash and
// returns the token identifying it there.
func TrashMove(root, absPath string) (string, error) {
	if _, err := os.Lstat(absPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	trashDir := filepath.Join(root, TrashDirName)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return "", err
	}
	token := trashToken(trashDir, filepath.Base(absPath), time.Now())
	if err := os.Rename(absPath, filepath.Join(trashDir, token)); err != nil {
		return "", err
	}
	return token, nil
}

// ListTrash returns the root's trash contents, newest first.
func ListTrash(root string) ([]TrashEntry, error) {
	trashDir := filepath.Join(root, TrashDirName)
	ents, err := os.ReadDir(trashDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TrashEntry{}, nil
		}
		return nil, err
	}
	out := make([]TrashEntry, 0, len(ents))
	for _, e := range ents {
		info, err := e.Info()
		if err != nil {
			continue
		}
		token := e.Name()
		ts, name := splitToken(token)
		te := TrashEntry{
			Token:     token,
			Name:      name,
			IsDir:     e.IsDir(),
			DeletedAt: ts,
		}
		if !te.IsDir {
			te.Size = info.Size()
		}
		out = append(out, te)
	}
	// Newest deletions first, ties broken by token for stable output.
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeletedAt != out[j].DeletedAt {
			return out[i].DeletedAt > out[j].DeletedAt
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

// splitToken recovers the deletion time and original name from a
// token, tolerating a collision counter in the timestamp part.
func splitToken(token string) (int64, string) {
	parts := strings.SplitN(token, "_", 2)
	if len(parts) != 2 {
		return 0, token
	}
	tsPart, _, _ := strings.Cut(parts[0], "-")
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, token
	}
	return ts, parts[1]
}

// restoreTarget finds a free destination for name under root, adding
// _1, _2 ... to the stem when the plain name is taken.
func restoreTarget(root, name string) string {
	dst := filepath.Join(root, name)
	if _, err := os.Lstat(dst); os.IsNotExist(err) {
		return dst
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		cand := filepath.Join(root, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Lstat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

// Restore moves a trashed item back under the root top level and
// returns the restored absolute path.
func Restore(root, token string) (string, error) {
	if !validToken(token) {
		return "", ErrNotFound
	}
	src := filepath.Join(root, TrashDirName, token)
	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	_, name := splitToken(token)
	dst := restoreTarget(root, name)
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Purge permanently removes a trashed item.
func Purge(root, token string) error {
	if !validToken(token) {
		return ErrNotFound
	}
	src := filepath.Join(root, TrashDirName, token)
	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return os.RemoveAll(src)
}
