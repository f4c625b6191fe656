package effects

import (
	"math"

	"multipass/pkg/raster"
)

// DotScreen replaces the image with a rotated grid of halftone dots driven
// by the average of the color channels. Alpha passes through.
type DotScreen struct {
	toggle
	Center [2]float32
	Angle  float32
	Scale  float32
	Size   [2]float32 // pattern resolution
}

func (e *DotScreen) Name() string { return "dotscreen" }

// Pattern returns the halftone value at texture coordinate u, v
func (e *DotScreen) Pattern(u, v float32) float32 {
	s, c := math.Sincos(float64(e.Angle))
	tx := float64(u*e.Size[0] - e.Center[0])
	ty := float64(v*e.Size[1] - e.Center[1])
	px := (c*tx - s*ty) * float64(e.Scale)
	py := (s*tx + c*ty) * float64(e.Scale)
	return float32(math.Sin(px)*math.Sin(py)) * 4
}

func (e *DotScreen) Render(p Pass) {
	raster.Shade(p.Dst, p.Workers, func(u, v float32) [4]float32 {
		c := p.Src.Sample(u, v)
		avg := (c[0] + c[1] + c[2]) / 3
		g := avg*10 - 5 + e.Pattern(u, v)
		return [4]float32{g, g, g, c[3]}
	})
}
