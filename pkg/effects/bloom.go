package effects

import (
	"math"

	"golang.org/x/image/draw"

	"multipass/internal/util"
	"multipass/pkg/raster"
)

// BloomMips is the number of blur levels, the first at half resolution
const BloomMips = 5

// BloomKernelRadii are the separable Gaussian radii per mip level; sigma
// equals the radius.
var BloomKernelRadii = [BloomMips]int{3, 5, 7, 9, 11}

// BloomFactors weight each mip level before the radius lerp
var BloomFactors = [BloomMips]float32{1.0, 0.8, 0.6, 0.4, 0.2}

// BloomSmoothWidth is the soft knee of the luminosity high-pass
const BloomSmoothWidth = 0.01

// Bloom adds a blurred copy of the bright parts of the image back onto it
type Bloom struct {
	toggle
	Strength  float32
	Radius    float32
	Threshold float32
}

func (e *Bloom) Name() string { return "bloom" }

// Luma returns the Rec.601 luminance used by the high-pass
func Luma(c [4]float32) float32 {
	return 0.299*c[0] + 0.587*c[1] + 0.114*c[2]
}

// GaussianCoefficients returns the one-sided kernel weights for a radius,
// index 0 being the center tap.
func GaussianCoefficients(radius int) []float32 {
	sigma := float64(radius)
	out := make([]float32, radius)
	for i := range out {
		x := float64(i)
		out[i] = float32(0.39894 * math.Exp(-0.5*x*x/(sigma*sigma)) / sigma)
	}
	return out
}

// MipFactor returns the weight of mip level i for the current radius
func (e *Bloom) MipFactor(i int) float32 {
	f := BloomFactors[i]
	return util.Lerp(f, 1.2-f, e.Radius)
}

// MipSizes returns the blur level sizes for a source of width x height
func MipSizes(width, height int) [BloomMips][2]int {
	var out [BloomMips][2]int
	w, h := int(math.Round(float64(width)/2)), int(math.Round(float64(height)/2))
	for i := range out {
		out[i] = [2]int{max(1, w), max(1, h)}
		w, h = w/2, h/2
	}
	return out
}

func (e *Bloom) Render(p Pass) {
	src, dst := p.Src, p.Dst

	bright := raster.NewImage(src.Width, src.Height)
	raster.Shade(bright, p.Workers, func(u, v float32) [4]float32 {
		c := src.Sample(u, v)
		a := util.SmoothStep(e.Threshold, e.Threshold+BloomSmoothWidth, Luma(c))
		return [4]float32{c[0] * a, c[1] * a, c[2] * a, c[3] * a}
	})

	var mips [BloomMips]*raster.Image
	input := bright
	for i, size := range MipSizes(src.Width, src.Height) {
		down := raster.NewImage(size[0], size[1])
		draw.BiLinear.Scale(down, down.Bounds(), input, input.Bounds(), draw.Src, nil)
		tmp := raster.NewImage(size[0], size[1])
		blur(tmp, down, 1, 0, BloomKernelRadii[i], p.Workers)
		blur(down, tmp, 0, 1, BloomKernelRadii[i], p.Workers)
		mips[i] = down
		input = down
	}

	var factors [BloomMips]float32
	for i := range factors {
		factors[i] = e.MipFactor(i) * e.Strength
	}

	raster.Shade(dst, p.Workers, func(u, v float32) [4]float32 {
		c := src.Sample(u, v)
		for i, m := range mips {
			b := m.Sample(u, v)
			for k := 0; k < 4; k++ {
				c[k] += factors[i] * b[k]
			}
		}
		return c
	})
}

// blur runs one direction of the separable Gaussian from src into dst
func blur(dst, src *raster.Image, dx, dy, radius, workers int) {
	coeffs := GaussianCoefficients(radius)
	var sum float32
	for i, w := range coeffs {
		if i == 0 {
			sum += w
		} else {
			sum += 2 * w
		}
	}

	raster.Rows(dst.Height, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < dst.Width; x++ {
				acc := scale(at(src, x, y), coeffs[0])
				for i := 1; i < radius; i++ {
					a := at(src, x+dx*i, y+dy*i)
					b := at(src, x-dx*i, y-dy*i)
					for k := 0; k < 4; k++ {
						acc[k] += coeffs[i] * (a[k] + b[k])
					}
				}
				dst.Put(x, y, scale(acc, 1/sum))
			}
		}
	})
}

func at(m *raster.Image, x, y int) [4]float32 {
	x = max(0, min(x, m.Width-1))
	y = max(0, min(y, m.Height-1))
	return m.Get(x, y)
}

func scale(c [4]float32, s float32) [4]float32 {
	return [4]float32{c[0] * s, c[1] * s, c[2] * s, c[3] * s}
}
