package thumbs

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func decodeJPEG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return img
}

func TestGetScalesAndCaches(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	writeTestPNG(t, src, 800, 400)

	cache := t.TempDir()
	th := New(cache, 200, "")

	b, placeholder, err := th.Get(context.Background(), src, 0, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if placeholder {
		t.Fatalf("real image flagged as placeholder")
	}
	img := decodeJPEG(t, b)
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Fatalf("bounds = %v, want 200x100", img.Bounds())
	}

	entries, err := os.ReadDir(cache)
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache entries = %d, err=%v", len(entries), err)
	}

	// second call must come from cache and match exactly
	b2, placeholder, err := th.Get(context.Background(), src, 0, false)
	if err != nil || placeholder {
		t.Fatalf("cached get: placeholder=%v err=%v", placeholder, err)
	}
	if !bytes.Equal(b, b2) {
		t.Fatalf("cached bytes differ")
	}
}

func TestGetExplicitSize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "square.png")
	writeTestPNG(t, src, 400, 400)

	cache := t.TempDir()
	th := New(cache, 256, "")

	b, _, err := th.Get(context.Background(), src, 100, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	img := decodeJPEG(t, b)
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Fatalf("bounds = %v, want 100x100", img.Bounds())
	}

	// a different size is a different cache entry
	if _, _, err := th.Get(context.Background(), src, 0, false); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(cache)
	if len(entries) != 2 {
		t.Fatalf("cache entries = %d, want 2", len(entries))
	}
}

func TestGetSmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	writeTestPNG(t, src, 50, 40)

	th := New(t.TempDir(), 256, "")
	b, _, err := th.Get(context.Background(), src, 0, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	img := decodeJPEG(t, b)
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 40 {
		t.Fatalf("bounds = %v, want 50x40", img.Bounds())
	}
}

func TestGetCorruptFileReturnsPlaceholderUncached(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(src, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := t.TempDir()
	th := New(cache, 100, "")

	b, placeholder, err := th.Get(context.Background(), src, 0, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !placeholder {
		t.Fatalf("corrupt file should yield placeholder")
	}
	img := decodeJPEG(t, b)
	if img.Bounds().Dx() != 100 {
		t.Fatalf("placeholder bounds = %v", img.Bounds())
	}

	entries, _ := os.ReadDir(cache)
	if len(entries) != 0 {
		t.Fatalf("placeholder must not be cached, found %d entries", len(entries))
	}
}

func TestGetRefreshBypassesCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.png")
	writeTestPNG(t, src, 300, 300)

	cache := t.TempDir()
	th := New(cache, 100, "")

	if _, _, err := th.Get(context.Background(), src, 0, false); err != nil {
		t.Fatalf("prime: %v", err)
	}
	entries, _ := os.ReadDir(cache)
	if len(entries) != 1 {
		t.Fatalf("cache not primed")
	}
	// poison the cache entry; refresh must regenerate it
	poison := filepath.Join(cache, entries[0].Name())
	if err := os.WriteFile(poison, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, placeholder, err := th.Get(context.Background(), src, 0, true)
	if err != nil || placeholder {
		t.Fatalf("refresh: placeholder=%v err=%v", placeholder, err)
	}
	decodeJPEG(t, b)
}

func TestSupported(t *testing.T) {
	th := New("", 100, "")
	if !th.Supported("a.PNG") || !th.Supported("b.webp") {
		t.Fatalf("image extensions should be supported")
	}
	if th.Supported("doc.pdf") {
		t.Fatalf("pdf is not thumbable")
	}
}

func TestCacheSize(t *testing.T) {
	cache := t.TempDir()
	th := New(cache, 100, "")
	if size, count := th.CacheSize(); size != 0 || count != 0 {
		t.Fatalf("empty cache: size=%d count=%d", size, count)
	}

	src := filepath.Join(t.TempDir(), "img.png")
	writeTestPNG(t, src, 200, 200)
	if _, _, err := th.Get(context.Background(), src, 0, false); err != nil {
		t.Fatal(err)
	}
	size, count := th.CacheSize()
	if size <= 0 || count != 1 {
		t.Fatalf("size=%d count=%d", size, count)
	}
}

func TestApplyOrientationRotates(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	got := applyOrientation(img, 6)
	if got.Bounds().Dx() != 2 || got.Bounds().Dy() != 4 {
		t.Fatalf("rotate 90 bounds = %v", got.Bounds())
	}
	if applyOrientation(img, 1) != image.Image(img) {
		t.Fatalf("orientation 1 must return the source")
	}
}
