package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestListSortsDirsFirstCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Zebra.txt"), "z")
	writeFile(t, filepath.Join(dir, "apple.txt"), "a")
	if err := os.Mkdir(filepath.Join(dir, "banana"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "Cherry"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := List(dir, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := names(res.Entries)
	want := []string{"banana", "Cherry", "apple.txt", "Zebra.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if res.HasMore {
		t.Fatalf("unexpected has_more on full listing")
	}
}

func TestListPagination(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		writeFile(t, filepath.Join(dir, n), "x")
	}

	page1, err := List(dir, "", 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Entries) != 2 || !page1.HasMore || page1.Total != 5 {
		t.Fatalf("page 1 = %d entries, has_more=%v, total=%d", len(page1.Entries), page1.HasMore, page1.Total)
	}

	page3, err := List(dir, "", 3, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3.Entries) != 1 || page3.HasMore {
		t.Fatalf("page 3 = %d entries, has_more=%v", len(page3.Entries), page3.HasMore)
	}

	empty, err := List(dir, "", 4, 2)
	if err != nil {
		t.Fatalf("page 4: %v", err)
	}
	if len(empty.Entries) != 0 || empty.HasMore {
		t.Fatalf("past-end page should be empty")
	}
}

func TestListErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := List(filepath.Join(dir, "missing"), "", 0, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing dir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "file.txt"), "x")
	if _, err := List(filepath.Join(dir, "file.txt"), "", 0, 0); !errors.Is(err, ErrNotDir) {
		t.Fatalf("file as dir: %v", err)
	}
}

func TestPreviewText(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "note.txt")
	writeFile(t, p, "hello world")

	res, err := Preview(p, 1000)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !res.Text || res.Content != "hello world" || res.Truncated {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPreviewTruncates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.log")
	writeFile(t, p, strings.Repeat("a", 100))

	res, err := Preview(p, 10)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Content) != 10 || !res.Truncated {
		t.Fatalf("content len=%d truncated=%v", len(res.Content), res.Truncated)
	}
}

func TestPreviewBinaryNotText(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.png")
	writeFile(t, p, "\x89PNG....")

	res, err := Preview(p, 1000)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if res.Text || res.Content != "" {
		t.Fatalf("binary file previewed as text: %+v", res)
	}
	if res.Mime != "image/png" {
		t.Fatalf("mime = %q", res.Mime)
	}
}

func TestPreviewReplacesInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "weird.txt")
	writeFile(t, p, "ok\xff\xfeok")

	res, err := Preview(p, 1000)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(res.Content, "�") || !strings.HasPrefix(res.Content, "ok") {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestSaveUploadAndConflict(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "sub", "new.txt")

	n, err := SaveUpload(dst, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if n != int64(len("payload")) {
		t.Fatalf("wrote %d bytes", n)
	}
	if _, err := SaveUpload(dst, strings.NewReader("again")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	writeFile(t, src, "x")

	if err := Rename(src, filepath.Join(dir, "new.txt")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := Rename(filepath.Join(dir, "gone.txt"), filepath.Join(dir, "y.txt")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing source: %v", err)
	}
	writeFile(t, src, "x")
	if err := Rename(src, filepath.Join(dir, "new.txt")); !errors.Is(err, ErrConflict) {
		t.Fatalf("existing destination: %v", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()

	if err := Delete(filepath.Join(dir, "missing"), false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}

	full := filepath.Join(dir, "full")
	writeFile(t, filepath.Join(full, "inner.txt"), "x")
	if err := Delete(full, false); !errors.Is(err, ErrDirNotEmpty) {
		t.Fatalf("non-empty dir: %v", err)
	}
	if err := Delete(full, true); err != nil {
		t.Fatalf("recursive delete: %v", err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatalf("dir still present")
	}
}

func TestDeleteSymlinkDoesNotFollow(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	writeFile(t, filepath.Join(target, "keep.txt"), "x")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink: %v", err)
	}

	if err := Delete(link, true); err != nil {
		t.Fatalf("delete link: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "keep.txt")); err != nil {
		t.Fatalf("symlink target was followed: %v", err)
	}
}
