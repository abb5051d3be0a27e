package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	// formats a phone or a field camera commonly produces
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrImageTooLarge is returned when the declared geometry exceeds the
// pixel budget. The header is checked before any pixel data is decoded.
var ErrImageTooLarge = errors.New("image exceeds pixel budget")

// DefaultMaxPixels bounds full decodes to roughly 160 MB of RGBA.
const DefaultMaxPixels = 40_000_000

// Inspector decodes uploaded leaf images for geometry and thumbnails.
type Inspector struct {
	Quality   int   // jpeg quality for thumbnails
	MaxPixels int64 // width*height allowed for a full decode; <= 0 uses DefaultMaxPixels
}

func New() *Inspector { return &Inspector{Quality: 80, MaxPixels: DefaultMaxPixels} }

// Dimensions reads only the header.
func (i *Inspector) Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail scales the image so its longest side is at most maxSide and
// re-encodes it as JPEG. Images already small enough are only re-encoded.
func (i *Inspector) Thumbnail(data []byte, maxSide int) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	budget := i.MaxPixels
	if budget <= 0 {
		budget = DefaultMaxPixels
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > budget {
		return nil, "", fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	q := i.Quality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return nil, "", fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func fit(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return max(w, 1), max(h, 1)
	}
	if w >= h {
		return maxSide, max(h*maxSide/w, 1)
	}
	return max(w*maxSide/h, 1), maxSide
}
