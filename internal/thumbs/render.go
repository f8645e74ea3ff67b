package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// heicExt reports a HEIC/HEIF container extension.
func heicExt(ext string) bool {
	return ext == ".heic" || ext == ".heif"
}

// RenderImage produces a browser-displayable JPEG for formats the
// browser may not handle natively, with EXIF orientation applied and
// an optional size cap. HEIC needs ffmpeg; without it, or with HEIC
// disabled, those files are refused.
func (t *Thumber) RenderImage(ctx context.Context, absPath string, maxDim int, heicEnabled bool) ([]byte, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, os.ErrInvalid
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if heicExt(ext) {
		if !heicEnabled {
			return nil, fmt.Errorf("heic rendering disabled")
		}
		return t.heicToJPEG(ctx, absPath, maxDim)
	}
	if !imageExt(ext) {
		return nil, fmt.Errorf("unsupported image format %q", ext)
	}

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
	src = scaleDown(src, maxDim)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, src, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// heicToJPEG converts via ffmpeg since no pure-Go decoder exists.
func (t *Thumber) heicToJPEG(ctx context.Context, absPath string, maxDim int) ([]byte, error) {
	ff := t.ffmpeg()
	if ff == "" {
		return nil, fmt.Errorf("ffmpeg not available for heic")
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-i", absPath}
	if maxDim > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", maxDim))
	}
	args = append(args, "-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "pipe:1")

	cmd := exec.CommandContext(ctx, ff, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return out.Bytes(), nil
}
