// Package fsutil tests validate path traversal protections.
package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestResolveWithinRootRejectsTraversal blocks obvious .. escapes.
func TestResolveWithinRootRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"../etc/passwd", "/../etc/passwd", "a/../../etc", "..\\..\\etc"} {
		if _, err := ResolveWithinRoot(root, p); err == nil {
			t.Fatalf("expected %q to be rejected", p)
		}
	}
}

// TestResolveWithinRootSharedPrefix ensures /data/ab does not admit
// paths under a sibling /data/abc that shares a string prefix.
func TestResolveWithinRootSharedPrefix(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "ab")
	sibling := filepath.Join(base, "abc")
	for _, d := range []string{root, sibling} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(sibling, "secret"), []byte("x"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	if _, err := ResolveWithinRoot(root, "../abc/secret"); err == nil {
		t.Fatalf("expected sibling prefix escape to be rejected")
	}
}

// TestResolveWithinRootAccepts returns the resolved path for paths
// strictly inside the root, including not-yet-existing ones.
func TestResolveWithinRootAccepts(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := ResolveWithinRoot(root, "sub/deep")
	if err != nil {
		t.Fatalf("ResolveWithinRoot: %v", err)
	}
	if got != filepath.Join(root, "sub", "deep") {
		t.Fatalf("got %q", got)
	}
	// A destination that does not exist yet is still confined.
	got, err = ResolveWithinRoot(root, "sub/newdir/newfile.txt")
	if err != nil {
		t.Fatalf("ResolveWithinRoot new path: %v", err)
	}
	if got != filepath.Join(root, "sub", "newdir", "newfile.txt") {
		t.Fatalf("got %q", got)
	}
	// Root itself.
	got, err = ResolveWithinRoot(root, "")
	if err != nil {
		t.Fatalf("ResolveWithinRoot root: %v", err)
	}
	if got != filepath.Clean(root) {
		t.Fatalf("got %q want root", got)
	}
}

// TestResolveWithinRootRejectsSymlinkEscape blocks symlink-based
// escapes even when the nominal path stays inside the root.
func TestResolveWithinRootRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink behavior varies on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "escape.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if _, err := ResolveWithinRoot(root, "link/escape.txt"); err == nil {
		t.Fatalf("expected symlink escape to be rejected")
	}
	if _, err := ResolveWithinRoot(root, "link"); err == nil {
		t.Fatalf("expected symlink target outside root to be rejected")
	}
}

// TestResolveWithinRootAllowsInternalSymlink keeps symlinks whose
// target stays inside the root.
func TestResolveWithinRootAllowsInternalSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink behavior varies on windows")
	}
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "real"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if _, err := ResolveWithinRoot(root, "alias"); err != nil {
		t.Fatalf("internal symlink rejected: %v", err)
	}
}

// TestCleanRelPath normalizes assorted inputs.
func TestCleanRelPath(t *testing.T) {
	cases := map[string]string{
		"":          "",
		".":         "",
		"/":         "",
		"a/b":       "a/b",
		"/a//b/":    "a/b",
		"a/./b":     "a/b",
		"a/../b":    "b",
		"../../a":   "a",
		"\\a\\b":    "a/b",
		"  /a/b  ":  "a/b",
		"a/b/../..": "",
	}
	for in, want := range cases {
		if got := CleanRelPath(in); got != want {
			t.Fatalf("CleanRelPath(%q) = %q, want %q", in, got, want)
		}
	}
}
