// Package fsutil confines user-supplied paths to an authorized root.
// Every filesystem operation in the server goes through ResolveWithinRoot
// before touching the disk.
package fsutil

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrPathTraversal marks a path that escapes its root.
var ErrPathTraversal = errors.New("path escapes root")

// CleanRelPath normalizes user input like "", ".", "/a/b", "a//../b"
// into a slash-separated relative path with no leading slash.
// "" means the root itself.
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// ResolveWithinRoot maps a user-provided relative path to an absolute
// filesystem path under root. It rejects traversal outside root, both
// lexically (".." segments) and through existing symlinks: the check is
// applied to the fully resolved target, so a symlink inside the root
// that points outside it is rejected too.
func ResolveWithinRoot(root, userPath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// The root itself may be reached through symlinks (e.g. /var on
	// macOS); compare against its resolved form.
	rootResolved, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", err
	}

	if strings.Contains(userPath, "\x00") {
		return "", ErrPathTraversal
	}
	// Force a relative path but keep ".." segments intact so that a
	// traversal attempt fails the containment check instead of being
	// silently re-rooted.
	rel := strings.TrimLeft(strings.TrimSpace(userPath), "/\\")
	rel = strings.ReplaceAll(rel, "\\", "/")
	joined := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
	if !isWithin(rootAbs, joined) {
		return "", ErrPathTraversal
	}

	// Resolve symlinks on the deepest existing prefix of the target and
	// confine the result. Components that do not exist yet cannot host
	// a symlink, so confining the existing prefix is sufficient.
	existing, rest := nearestExisting(joined)
	if existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		final := filepath.Clean(filepath.Join(resolved, rest))
		if !isWithin(rootResolved, final) && !isWithin(rootAbs, final) {
			return "", ErrPathTraversal
		}
	}

	return joined, nil
}

// isWithin reports whether candidate equals root or sits below it.
// The comparison is per path component: /data/abc is NOT within
// /data/ab even though the strings share a prefix.
func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

// nearestExisting walks up from p to the deepest path that exists,
// returning it together with the not-yet-existing remainder.
func nearestExisting(p string) (existing, rest string) {
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			return cur, rest
		} else if !os.IsNotExist(err) {
			return "", ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", ""
		}
		if rest == "" {
			rest = filepath.Base(cur)
		} else {
			rest = filepath.Join(filepath.Base(cur), rest)
		}
		cur = parent
	}
}
