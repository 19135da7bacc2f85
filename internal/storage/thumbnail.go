package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// thumbnailBound is the maximum edge length of a stored image.
const thumbnailBound = 512

// MakeThumbnail decodes the image and downscales it so neither edge exceeds
// the bound, re-encoding in the original format. Images already within the
// bound are still re-encoded, which strips any foreign metadata.
func MakeThumbnail(data []byte, ext string) ([]byte, string, error) {
	var (
		src image.Image
		err error
	)

	switch ext {
	case ".png":
		src, err = png.Decode(bytes.NewReader(data))
	case ".jpg", ".jpeg":
		src, err = jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, "", ErrUnsupportedImageType
	}
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	dst := scaleDown(src, thumbnailBound)

	var buf bytes.Buffer
	switch ext {
	case ".png":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// scaleDown is a nearest-neighbour downscale. Quality is sufficient for
// profile thumbnails and avoids pulling an imaging dependency.
func scaleDown(src image.Image, bound int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= bound && h <= bound {
		return src
	}

	scale := float64(bound) / float64(w)
	if h > w {
		scale = float64(bound) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		sy := b.Min.Y + y*h/dh
		for x := 0; x < dw; x++ {
			sx := b.Min.X + x*w/dw
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
