package classifier

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"greenbite/internal/apperr"
)

// InputSize is the square edge, in pixels, every image is resized to
// before scoring.
const InputSize = 224

// MaxPixels caps the decoded image area. Larger images are refused before
// their pixels are allocated.
const MaxPixels = 89_478_485

// Decode turns uploaded bytes into an image. Anything the registered
// decoders reject is an input error.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperr.Input("invalid image file: empty upload")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Inputf("invalid image file: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", apperr.Input("invalid image file: zero-sized image")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", apperr.Inputf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Inputf("invalid image file: %v", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", apperr.Input("invalid image file: zero-sized image")
	}
	return img, format, nil
}

// Preprocess resizes src to InputSize x InputSize RGBA. The aspect ratio is
// not preserved.
func Preprocess(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// EncodePNG serializes a preprocessed image for remote backends.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
