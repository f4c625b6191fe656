package effects

import (
	"math"

	"multipass/pkg/raster"
)

// RGBShift offsets the red and blue channels in opposite directions
type RGBShift struct {
	toggle
	Amount float32
	Angle  float32 // radians
}

func (e *RGBShift) Name() string { return "rgbshift" }

// Offset returns the texture-space displacement of the red channel
func (e *RGBShift) Offset() (float32, float32) {
	s, c := math.Sincos(float64(e.Angle))
	return e.Amount * float32(c), e.Amount * float32(s)
}

func (e *RGBShift) Render(p Pass) {
	ox, oy := e.Offset()
	raster.Shade(p.Dst, p.Workers, func(u, v float32) [4]float32 {
		r := p.Src.Sample(u+ox, v+oy)
		ga := p.Src.Sample(u, v)
		b := p.Src.Sample(u-ox, v-oy)
		return [4]float32{r[0], ga[1], b[2], ga[3]}
	})
}
