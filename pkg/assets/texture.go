package assets

import (
	"fmt"
	"image"
	"io"
	"os"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadTexture decodes an image file into RGBA. Images wider or taller than
// maxSize are scaled down preserving aspect ratio; maxSize <= 0 disables
// the limit.
func LoadTexture(path string, maxSize int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture: %w", err)
	}
	defer f.Close()

	img, err := DecodeTexture(f, maxSize)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	return img, nil
}

// DecodeTexture decodes any registered format (png, jpeg, gif, bmp, tiff, webp)
func DecodeTexture(r io.Reader, maxSize int) (*image.RGBA, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return fit(src, maxSize), nil
}

// FitSize returns the size of a w×h image scaled to fit within maxSize
func FitSize(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}

func fit(src image.Image, maxSize int) *image.RGBA {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
