package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the configuration for errors that must be caught before
// the first frame. All problems are reported together, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		add("graphics: viewport %dx%d must be positive", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.FrameRate < 0 {
		add("graphics: framerate %d must not be negative", c.Graphics.FrameRate)
	}

	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		add("camera: fov %v must be in (0, 180)", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		add("camera: need 0 < near < far, got near=%v far=%v", c.Camera.Near, c.Camera.Far)
	}

	declared := make(map[string]bool, len(c.Scene.Objects))
	for i, o := range c.Scene.Objects {
		if o.Name == "" {
			add("scene.objects[%d]: name is required", i)
			continue
		}
		if declared[o.Name] {
			add("scene.objects[%d]: duplicate name %q", i, o.Name)
		}
		declared[o.Name] = true

		switch o.Kind {
		case KindMesh:
		case KindBox:
			if o.Size[0] <= 0 || o.Size[1] <= 0 || o.Size[2] <= 0 {
				add("scene.objects[%s]: box size %v must be positive", o.Name, o.Size)
			}
		case KindSphere:
			if o.Radius <= 0 {
				add("scene.objects[%s]: sphere radius %v must be positive", o.Name, o.Radius)
			}
		default:
			add("scene.objects[%s]: unknown kind %q", o.Name, o.Kind)
		}
	}

	if n := len(c.Branches); n < 2 || n > 3 {
		add("branches: %d configured, the compositor blends 2 or 3", n)
	}
	if c.Compositor.Inputs != 0 && c.Compositor.Inputs != len(c.Branches) {
		add("compositor: %d inputs wired but %d branches configured", c.Compositor.Inputs, len(c.Branches))
	}

	for i, b := range c.Branches {
		label := b.Name
		if label == "" {
			label = fmt.Sprint(i)
		}
		if len(b.Visible) == 0 {
			add("branches[%s]: no visible objects", label)
		}
		for _, name := range b.Visible {
			if !declared[name] {
				add("branches[%s]: unknown object %q", label, name)
			}
		}
		for j, e := range b.Effects {
			if !slices.Contains(EffectTypes, e.Type) {
				add("branches[%s].effects[%d]: unknown type %q", label, j, e.Type)
			}
		}
	}

	switch c.Compositor.Mode {
	case ModeSequentialOver, ModeBaseRelativeOver:
	default:
		add("compositor: unknown mode %q", c.Compositor.Mode)
	}
	if c.Compositor.Pixelate < 0 {
		add("compositor: pixelate %v must not be negative", c.Compositor.Pixelate)
	}

	switch c.Targets.Policy {
	case PolicyPersistent, PolicyPerFrame:
	default:
		add("targets: unknown policy %q", c.Targets.Policy)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
