// Package thumbs generates and caches JPEG thumbnails for images and,
// when ffmpeg is available, video files.
package thumbs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 82

// Thumber makes thumbnails and keeps them in a flat on-disk cache.
// Placeholders for undecodable inputs are generated fresh each time
// and never cached, so a file fixed later gets a real thumbnail.
type Thumber struct {
	CacheDir   string
	MaxDim     int
	FFmpegPath string
}

// New returns a Thumber; the cache directory is created lazily.
func New(cacheDir string, maxDim int, ffmpegPath string) *Thumber {
	if maxDim <= 0 {
		maxDim = 256
	}
	return &Thumber{CacheDir: cacheDir, MaxDim: maxDim, FFmpegPath: ffmpegPath}
}

func imageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func videoExt(ext string) bool {
	switch ext {
	case ".mp4", ".webm", ".mkv", ".mov", ".avi", ".m4v":
		return true
	}
	return false
}

// Supported reports whether a thumbnail can be attempted for the file.
func (t *Thumber) Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExt(ext) {
		return true
	}
	return videoExt(ext) && t.ffmpeg() != ""
}

func (t *Thumber) ffmpeg() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return ""
	}
	return p
}

// cacheKey ties the cached thumbnail to the exact source file state.
func cacheKey(absPath string, info os.FileInfo, dim int, kind string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%d|%s",
		absPath, info.ModTime().UnixNano(), info.Size(), dim, kind)))
	return hex.EncodeToString(h[:]) + ".jpg"
}

// Get returns JPEG thumbnail bytes for the file, fitted into dim x dim
// (0 means the configured default). The second return is true when the
// bytes are a generated placeholder rather than real content. refresh
// bypasses the cache read but still writes the fresh result back.
func (t *Thumber) Get(ctx context.Context, absPath string, dim int, refresh bool) ([]byte, bool, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, os.ErrInvalid
	}
	if dim <= 0 {
		dim = t.MaxDim
	}
	if dim > 1024 {
		dim = 1024
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	kind := "image"
	if videoExt(ext) {
		kind = "video"
	}

	var cachePath string
	if t.CacheDir != "" {
		cachePath = filepath.Join(t.CacheDir, cacheKey(absPath, info, dim, kind))
		if !refresh {
			if b, err := os.ReadFile(cachePath); err == nil && len(b) > 0 {
				return b, false, nil
			}
		}
	}

	var data []byte
	switch kind {
	case "video":
		data, err = t.videoThumb(ctx, absPath, dim)
	default:
		data, err = t.imageThumb(absPath, dim)
	}
	if err != nil {
		return t.placeholder(), true, nil
	}

	if cachePath != "" {
		if err := os.MkdirAll(t.CacheDir, 0o755); err == nil {
			tmp := cachePath + ".tmp"
			if err := os.WriteFile(tmp, data, 0o644); err == nil {
				_ = os.Rename(tmp, cachePath)
			}
		}
	}
	return data, false, nil
}

func (t *Thumber) imageThumb(absPath string, dim int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if o := orientationOf(absPath); o > 1 {
		src = applyOrientation(src, o)
	}
	return encodeScaled(src, dim)
}

// videoThumb grabs one frame a second in, scaled by ffmpeg itself so
// huge videos never decode fully.
func (t *Thumber) videoThumb(ctx context.Context, absPath string, dim int) ([]byte, error) {
	ff := t.ffmpeg()
	if ff == "" {
		return nil, fmt.Errorf("ffmpeg not available")
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "1", "-i", absPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", dim),
		"-f", "image2", "-c:v", "mjpeg", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, ff, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame")
	}
	return out.Bytes(), nil
}

// encodeScaled fits the image into max x max preserving aspect ratio
// and encodes JPEG.
func encodeScaled(src image.Image, max int) ([]byte, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}
	if max <= 0 {
		max = 256
	}

	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = int(float64(h) * (float64(max) / float64(w)))
		}
	} else {
		if h > max {
			nh = max
			nw = int(float64(w) * (float64(max) / float64(h)))
		}
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// placeholder is a flat gray square rendered on demand.
func (t *Thumber) placeholder() []byte {
	dim := t.MaxDim
	if dim <= 0 {
		dim = 256
	}
	img := image.NewRGBA(image.Rect(0, 0, dim, dim))
	gray := color.RGBA{R: 90, G: 90, B: 90, A: 255}
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			img.Set(x, y, gray)
		}
	}
	var out bytes.Buffer
	_ = jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality})
	return out.Bytes()
}

// CacheSize walks the cache directory and sums file sizes.
func (t *Thumber) CacheSize() (int64, int) {
	if t.CacheDir == "" {
		return 0, 0
	}
	var total int64
	var count int
	entries, err := os.ReadDir(t.CacheDir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
			count++
		}
	}
	return total, count
}
