package thumbs

import (
	"encoding/binary"
	"image"
	"os"

	"golang.org/x/image/draw"
)

// orientationOf extracts the EXIF orientation tag (1..8) from a JPEG.
// Anything unreadable comes back as 1 (no transform). Only the APP1
// segment is parsed; full EXIF decoding is not needed for this.
func orientationOf(absPath string) int {
	f, err := os.Open(absPath)
	if err != nil {
		return 1
	}
	defer f.Close()

	head := make([]byte, 2)
	if _, err := f.Read(head); err != nil || head[0] != 0xFF || head[1] != 0xD8 {
		return 1
	}

	seg := make([]byte, 4)
	for {
		if _, err := f.Read(seg); err != nil {
			return 1
		}
		if seg[0] != 0xFF {
			return 1
		}
		marker := seg[1]
		size := int(binary.BigEndian.Uint16(seg[2:4]))
		if size < 2 {
			return 1
		}
		if marker == 0xE1 {
			body := make([]byte, size-2)
			if _, err := f.Read(body); err != nil {
				return 1
			}
			return orientationFromEXIF(body)
		}
		// SOS means image data starts; no EXIF found before it.
		if marker == 0xDA {
			return 1
		}
		if _, err := f.Seek(int64(size-2), 1); err != nil {
			return 1
		}
	}
}

func orientationFromEXIF(body []byte) int {
	if len(body) < 14 || string(body[:6]) != "Exif\x00\x00" {
		return 1
	}
	tiff := body[6:]
	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return 1
	}
	if len(tiff) < 8 {
		return 1
	}
	ifdOff := order.Uint32(tiff[4:8])
	if int(ifdOff)+2 > len(tiff) {
		return 1
	}
	count := int(order.Uint16(tiff[ifdOff : ifdOff+2]))
	for i := 0; i < count; i++ {
		off := int(ifdOff) + 2 + i*12
		if off+12 > len(tiff) {
			return 1
		}
		tag := order.Uint16(tiff[off : off+2])
		if tag == 0x0112 {
			v := int(order.Uint16(tiff[off+8 : off+10]))
			if v >= 1 && v <= 8 {
				return v
			}
			return 1
		}
	}
	return 1
}

// applyOrientation bakes an EXIF orientation into pixel data so the
// browser never has to know about the tag.
func applyOrientation(src image.Image, orientation int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	set := func(x, y int, sx, sy int) {
		dst.Set(x, y, src.At(b.Min.X+sx, b.Min.Y+sy))
	}

	switch orientation {
	case 2: // mirror horizontal
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(w-1-x, y, x, y)
			}
		}
	case 3: // rotate 180
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(w-1-x, h-1-y, x, y)
			}
		}
	case 4: // mirror vertical
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(x, h-1-y, x, y)
			}
		}
	case 5: // mirror horizontal + rotate 270 CW
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(y, x, x, y)
			}
		}
	case 6: // rotate 90 CW
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(h-1-y, x, x, y)
			}
		}
	case 7: // mirror horizontal + rotate 90 CW
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(h-1-y, w-1-x, x, y)
			}
		}
	case 8: // rotate 270 CW
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(y, w-1-x, x, y)
			}
		}
	default:
		return src
	}
	return dst
}

// scaleDown shrinks src so neither side exceeds max, or returns it
// untouched when it already fits.
func scaleDown(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if max <= 0 || (w <= max && h <= max) {
		return src
	}
	nw, nh := w, h
	if w > h {
		nw = max
		nh = int(float64(h) * (float64(max) / float64(w)))
	} else {
		nh = max
		nw = int(float64(w) * (float64(max) / float64(h)))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
