// Package raster holds the CPU framebuffer and the scan-line rasterizer
// used by the software device.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"multipass/internal/util"
)

// Image is a linear float RGBA framebuffer with premultiplied alpha. Rows
// are stored top to bottom like image.RGBA. Stored values are clamped to
// [0, 1].
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage allocates a transparent black image
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

// Get returns the pixel at x, y
func (m *Image) Get(x, y int) [4]float32 {
	i := (y*m.Width + x) * 4
	return [4]float32{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// Put stores a pixel, clamping each channel to [0, 1]
func (m *Image) Put(x, y int, c [4]float32) {
	i := (y*m.Width + x) * 4
	m.Pix[i] = util.Clamp01(c[0])
	m.Pix[i+1] = util.Clamp01(c[1])
	m.Pix[i+2] = util.Clamp01(c[2])
	m.Pix[i+3] = util.Clamp01(c[3])
}

// Fill sets every pixel to c
func (m *Image) Fill(c [4]float32) {
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i] = util.Clamp01(c[0])
		m.Pix[i+1] = util.Clamp01(c[1])
		m.Pix[i+2] = util.Clamp01(c[2])
		m.Pix[i+3] = util.Clamp01(c[3])
	}
}

// CopyFrom copies src into m. Sizes must match.
func (m *Image) CopyFrom(src *Image) {
	copy(m.Pix, src.Pix)
}

// SameSize reports whether both images have the same dimensions
func (m *Image) SameSize(o *Image) bool {
	return m.Width == o.Width && m.Height == o.Height
}

// Sample reads the image bilinearly at texture coordinate u, v with
// clamp-to-edge addressing. Coordinates follow the GL convention: v = 0 is
// the bottom row.
func (m *Image) Sample(u, v float32) [4]float32 {
	x := u*float32(m.Width) - 0.5
	y := (1-v)*float32(m.Height) - 0.5
	return m.bilinear(x, y)
}

func (m *Image) bilinear(x, y float32) [4]float32 {
	x0 := int(math.Floor(float64(x)))
	y0 := int(math.Floor(float64(y)))
	fx := x - float32(x0)
	fy := y - float32(y0)

	c00 := m.clamped(x0, y0)
	c10 := m.clamped(x0+1, y0)
	c01 := m.clamped(x0, y0+1)
	c11 := m.clamped(x0+1, y0+1)

	var out [4]float32
	for k := 0; k < 4; k++ {
		top := util.Lerp(c00[k], c10[k], fx)
		bottom := util.Lerp(c01[k], c11[k], fx)
		out[k] = util.Lerp(top, bottom, fy)
	}
	return out
}

// clamped returns the pixel nearest to x, y inside the image
func (m *Image) clamped(x, y int) [4]float32 {
	x = max(0, min(x, m.Width-1))
	y = max(0, min(y, m.Height-1))
	return m.Get(x, y)
}

// ColorModel implements image.Image
func (m *Image) ColorModel() color.Model { return color.RGBA64Model }

// Bounds implements image.Image
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// At implements image.Image
func (m *Image) At(x, y int) color.Color { return m.RGBA64At(x, y) }

// RGBA64At implements image.RGBA64Image
func (m *Image) RGBA64At(x, y int) color.RGBA64 {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return color.RGBA64{}
	}
	c := m.Get(x, y)
	return color.RGBA64{to16(c[0]), to16(c[1]), to16(c[2]), to16(c[3])}
}

// Set implements draw.Image
func (m *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return
	}
	r, g, b, a := c.RGBA()
	m.Put(x, y, [4]float32{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff, float32(a) / 0xffff})
}

// SetRGBA64 implements draw.RGBA64Image
func (m *Image) SetRGBA64(x, y int, c color.RGBA64) {
	m.Set(x, y, c)
}

var _ draw.RGBA64Image = (*Image)(nil)

func to16(v float32) uint16 {
	return uint16(util.Clamp01(v)*0xffff + 0.5)
}

func to8(v float32) uint8 {
	return uint8(util.Clamp01(v)*0xff + 0.5)
}

// ToRGBA converts the image to 8-bit premultiplied RGBA. dst is reused when
// it has the right size.
func (m *Image) ToRGBA(dst *image.RGBA) *image.RGBA {
	if dst == nil || dst.Rect.Dx() != m.Width || dst.Rect.Dy() != m.Height {
		dst = image.NewRGBA(m.Bounds())
	}
	for y := 0; y < m.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < m.Width; x++ {
			c := m.Get(x, y)
			row[x*4] = to8(c[0])
			row[x*4+1] = to8(c[1])
			row[x*4+2] = to8(c[2])
			row[x*4+3] = to8(c[3])
		}
	}
	return dst
}

// FromImage converts any image to a float image
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	m := NewImage(b.Dx(), b.Dy())
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)
	return m
}

// Rows runs fn over horizontal bands of [0, height) using up to workers
// goroutines. workers <= 0 means GOMAXPROCS.
func Rows(height, workers int, fn func(y0, y1 int)) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if height <= 0 {
		return
	}
	if workers == 1 || height < 2*workers {
		fn(0, height)
		return
	}

	band := (height + workers*2 - 1) / (workers * 2)
	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < height; y0 += band {
		y1 := min(y0+band, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}

// Shade evaluates fn for every pixel of dst and stores the result. u, v is
// the pixel center in GL texture space, so a full-screen pass reading
// another image of the same size with Sample(u, v) reads the same pixel.
func Shade(dst *Image, workers int, fn func(u, v float32) [4]float32) {
	w, h := float32(dst.Width), float32(dst.Height)
	Rows(dst.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			v := 1 - (float32(y)+0.5)/h
			for x := 0; x < dst.Width; x++ {
				u := (float32(x) + 0.5) / w
				dst.Put(x, y, fn(u, v))
			}
		}
	})
}
