// Package compositor blends the branch outputs into the final frame.
package compositor

import (
	"errors"
	"fmt"

	"multipass/pkg/config"
	"multipass/pkg/effects"
	"multipass/pkg/raster"
)

// ErrInputMismatch is returned when the number of wired inputs does not
// match the number of branches, or is outside 2..3.
var ErrInputMismatch = errors.New("compositor input mismatch")

// Limits on the number of blended layers
const (
	MinInputs = 2
	MaxInputs = 3
)

// Mode selects how layers after the first are blended
type Mode int

const (
	// SequentialOver attenuates each layer by the alpha accumulated so far.
	SequentialOver Mode = iota
	// BaseRelativeOver attenuates every layer by the base layer's alpha only.
	BaseRelativeOver
)

func (m Mode) String() string {
	switch m {
	case SequentialOver:
		return config.ModeSequentialOver
	case BaseRelativeOver:
		return config.ModeBaseRelativeOver
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a configuration mode name
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeSequentialOver, "":
		return SequentialOver, nil
	case config.ModeBaseRelativeOver:
		return BaseRelativeOver, nil
	}
	return 0, fmt.Errorf("unknown blend mode %q", s)
}

// Compositor holds the blend configuration of the final pass
type Compositor struct {
	mode     Mode
	pixelate float32
	inputs   int
}

// New validates the input count and creates a compositor
func New(mode Mode, pixelate float32, inputs int) (*Compositor, error) {
	if inputs < MinInputs || inputs > MaxInputs {
		return nil, fmt.Errorf("%w: %d inputs, need %d to %d", ErrInputMismatch, inputs, MinInputs, MaxInputs)
	}
	if pixelate < 0 {
		return nil, fmt.Errorf("pixelate grid %v must not be negative", pixelate)
	}
	return &Compositor{mode: mode, pixelate: pixelate, inputs: inputs}, nil
}

// FromConfig creates the compositor for a configuration with the given
// number of branches.
func FromConfig(cfg config.CompositorConfig, branches int) (*Compositor, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	inputs := cfg.Inputs
	if inputs == 0 {
		inputs = branches
	}
	if inputs != branches {
		return nil, fmt.Errorf("%w: %d inputs wired for %d branches", ErrInputMismatch, inputs, branches)
	}
	return New(mode, cfg.Pixelate, inputs)
}

// Mode returns the blend mode
func (c *Compositor) Mode() Mode { return c.mode }

// Pixelate returns the grid applied to input A, 0 when off
func (c *Compositor) Pixelate() float32 { return c.pixelate }

// Inputs returns the number of layers blended
func (c *Compositor) Inputs() int { return c.inputs }

// Blend combines premultiplied layers, the first being the base. The result
// is not clamped.
func Blend(mode Mode, layers ...[4]float32) [4]float32 {
	if len(layers) == 0 {
		return [4]float32{}
	}
	result := layers[0]
	baseAlpha := result[3]
	for _, l := range layers[1:] {
		cover := result[3]
		if mode == BaseRelativeOver {
			cover = baseAlpha
		}
		w := (1 - cover) * l[3]
		for k := 0; k < 4; k++ {
			result[k] += l[k] * w
		}
	}
	return result
}

// Render blends inputs into dst. Every input must have the size of dst.
func (c *Compositor) Render(dst *raster.Image, inputs []*raster.Image, workers int) error {
	if len(inputs) != c.inputs {
		return fmt.Errorf("%w: %d images for %d inputs", ErrInputMismatch, len(inputs), c.inputs)
	}
	for i, in := range inputs {
		if !in.SameSize(dst) {
			return fmt.Errorf("input %d is %dx%d, output is %dx%d", i, in.Width, in.Height, dst.Width, dst.Height)
		}
	}

	raster.Shade(dst, workers, func(u, v float32) [4]float32 {
		var layers [MaxInputs][4]float32
		au, av := effects.PixelateUV(u, v, c.pixelate)
		layers[0] = inputs[0].Sample(au, av)
		for i := 1; i < len(inputs); i++ {
			layers[i] = inputs[i].Sample(u, v)
		}
		return Blend(c.mode, layers[:len(inputs)]...)
	})
	return nil
}
