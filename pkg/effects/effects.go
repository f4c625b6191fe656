// Package effects implements the image-space passes a branch can chain.
// Every effect reads one image and writes another; the CPU kernels here are
// the reference the GLSL programs of the OpenGL device follow.
package effects

import (
	"fmt"
	"math"
	"sort"

	"multipass/pkg/config"
	"multipass/pkg/raster"
)

// Pass is the input of one effect invocation. Src and Dst have the same size
// and never alias.
type Pass struct {
	Src     *raster.Image
	Dst     *raster.Image
	Workers int
}

// Effect is one image-space pass of a branch
type Effect interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Render(p Pass)
}

// toggle implements the enabled flag shared by every effect
type toggle struct {
	disabled bool
}

func (t *toggle) Enabled() bool { return !t.disabled }

func (t *toggle) SetEnabled(enabled bool) { t.disabled = !enabled }

// New builds an effect from configuration. Unknown types and unknown or
// non-numeric parameters are errors.
func New(cfg config.EffectConfig) (Effect, error) {
	p := params{values: cfg.Params, used: make(map[string]bool)}

	var fx Effect
	switch cfg.Type {
	case "bloom":
		fx = &Bloom{
			Strength:  p.float("strength", 1),
			Radius:    p.float("radius", 0),
			Threshold: p.float("threshold", 0),
		}
	case "dotscreen":
		fx = &DotScreen{
			Center: p.vec2("center", [2]float32{0.5, 0.5}),
			Angle:  p.float("angle", 1.57),
			Scale:  p.float("scale", 1),
			Size:   p.vec2("size", [2]float32{256, 256}),
		}
	case "rgbshift":
		fx = &RGBShift{
			Amount: p.float("amount", 0.005),
			Angle:  p.float("angle", 0),
		}
	case "pixelate":
		fx = &Pixelate{Grid: p.positive("grid", 90)}
	case "output":
		fx = &Output{}
	default:
		return nil, fmt.Errorf("unknown effect type %q", cfg.Type)
	}

	if err := p.check(cfg.Type); err != nil {
		return nil, err
	}
	fx.SetEnabled(cfg.IsEnabled())
	return fx, nil
}

type params struct {
	values map[string]interface{}
	used   map[string]bool
	errs   []string
}

func (p *params) float(name string, def float32) float32 {
	p.used[name] = true
	v, ok := p.values[name]
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v is not a number", name, v))
		return def
	}
	return f
}

// positive is float for parameters that divide: zero or less is an error
func (p *params) positive(name string, def float32) float32 {
	f := p.float(name, def)
	if f <= 0 {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v must be positive", name, f))
		return def
	}
	return f
}

func (p *params) vec2(name string, def [2]float32) [2]float32 {
	p.used[name] = true
	v, ok := p.values[name]
	if !ok {
		return def
	}
	list, ok := v.([]interface{})
	if !ok || len(list) != 2 {
		p.errs = append(p.errs, fmt.Sprintf("%s: %v is not a pair", name, v))
		return def
	}
	var out [2]float32
	for i, e := range list {
		f, ok := toFloat(e)
		if !ok {
			p.errs = append(p.errs, fmt.Sprintf("%s: %v is not a number", name, e))
			return def
		}
		out[i] = f
	}
	return out
}

func (p *params) check(kind string) error {
	var unknown []string
	for k := range p.values {
		if !p.used[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		p.errs = append(p.errs, fmt.Sprintf("unknown parameter %q", k))
	}
	if len(p.errs) > 0 {
		return fmt.Errorf("%s: %v", kind, p.errs)
	}
	return nil
}

func toFloat(v interface{}) (float32, bool) {
	switch n := v.(type) {
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	case float64:
		return float32(n), true
	case float32:
		return n, true
	}
	return 0, false
}

// Build creates the effect chain of a branch, in order
func Build(cfgs []config.EffectConfig) ([]Effect, error) {
	out := make([]Effect, 0, len(cfgs))
	for i, c := range cfgs {
		fx, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		out = append(out, fx)
	}
	return out, nil
}

// Pixelate snaps texture coordinates to a grid so every cell reads one point
type Pixelate struct {
	toggle
	Grid float32
}

func (e *Pixelate) Name() string { return "pixelate" }

func (e *Pixelate) Render(p Pass) {
	raster.Shade(p.Dst, p.Workers, func(u, v float32) [4]float32 {
		u, v = PixelateUV(u, v, e.Grid)
		return p.Src.Sample(u, v)
	})
}

// PixelateUV returns floor(uv*grid)/grid. A grid <= 0 leaves uv unchanged.
func PixelateUV(u, v, grid float32) (float32, float32) {
	if grid <= 0 {
		return u, v
	}
	return float32(math.Floor(float64(u*grid))) / grid, float32(math.Floor(float64(v*grid))) / grid
}

// Output converts linear color to sRGB. Alpha is kept.
type Output struct {
	toggle
}

func (e *Output) Name() string { return "output" }

func (e *Output) Render(p Pass) {
	src, dst := p.Src, p.Dst
	raster.Rows(dst.Height, p.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < dst.Width; x++ {
				c := src.Get(x, y)
				dst.Put(x, y, [4]float32{LinearToSRGB(c[0]), LinearToSRGB(c[1]), LinearToSRGB(c[2]), c[3]})
			}
		}
	})
}

// LinearToSRGB applies the sRGB transfer function to one channel
func LinearToSRGB(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return float32(1.055*math.Pow(float64(c), 1/2.4) - 0.055)
}
