// Package software implements the rendering device on the CPU. It follows
// the OpenGL device pass for pass, so it serves headless runs and tests.
package software

import (
	"fmt"
	"image"
	"sync"

	"multipass/internal/logger"
	"multipass/pkg/compositor"
	"multipass/pkg/effects"
	"multipass/pkg/engine"
	"multipass/pkg/raster"
	"multipass/pkg/scene"
)

// Target is a CPU render target
type Target struct {
	img      *raster.Image
	released bool
}

// Size implements engine.Target
func (t *Target) Size() (int, int) { return t.img.Width, t.img.Height }

// Release implements engine.Target
func (t *Target) Release() {
	t.released = true
}

// Image returns the target's pixels
func (t *Target) Image() *raster.Image { return t.img }

// Device renders into float framebuffers
type Device struct {
	logger  *logger.Logger
	workers int
	rast    *raster.Rasterizer

	mu       sync.Mutex
	screen   *raster.Image
	snapshot *image.RGBA
}

var _ engine.Device = (*Device)(nil)

// NewDevice creates a device with a width x height default framebuffer
func NewDevice(width, height, workers int, log *logger.Logger) (*Device, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	log.Debugf("Software device %dx%d, %d workers", width, height, workers)
	return &Device{
		logger:  log,
		workers: workers,
		rast:    raster.NewRasterizer(workers),
		screen:  raster.NewImage(width, height),
	}, nil
}

func unwrap(ts ...engine.Target) ([]*raster.Image, error) {
	out := make([]*raster.Image, len(ts))
	for i, t := range ts {
		st, ok := t.(*Target)
		if !ok {
			return nil, fmt.Errorf("target %T does not belong to the software device", t)
		}
		if st.released {
			return nil, engine.ErrTargetReleased
		}
		out[i] = st.img
	}
	return out, nil
}

// NewTarget implements engine.Device
func (d *Device) NewTarget(width, height int) (engine.Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return &Target{img: raster.NewImage(width, height)}, nil
}

// DrawView implements engine.Device
func (d *Device) DrawView(dst engine.Target, view *scene.View) error {
	imgs, err := unwrap(dst)
	if err != nil {
		return err
	}
	d.rast.Draw(imgs[0], view)
	return nil
}

// ApplyEffect implements engine.Device
func (d *Device) ApplyEffect(fx effects.Effect, src, dst engine.Target) error {
	imgs, err := unwrap(src, dst)
	if err != nil {
		return err
	}
	if imgs[0] == imgs[1] {
		return fmt.Errorf("%s: source and destination are the same target", fx.Name())
	}
	fx.Render(effects.Pass{Src: imgs[0], Dst: imgs[1], Workers: d.workers})
	return nil
}

// Copy implements engine.Device
func (d *Device) Copy(src, dst engine.Target) error {
	imgs, err := unwrap(src, dst)
	if err != nil {
		return err
	}
	if !imgs[0].SameSize(imgs[1]) {
		return fmt.Errorf("copy between %dx%d and %dx%d", imgs[0].Width, imgs[0].Height, imgs[1].Width, imgs[1].Height)
	}
	imgs[1].CopyFrom(imgs[0])
	return nil
}

// Composite implements engine.Device
func (d *Device) Composite(c *compositor.Compositor, u engine.Uniforms) error {
	imgs, err := unwrap(u.Inputs...)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := c.Render(d.screen, imgs, d.workers); err != nil {
		return err
	}
	d.snapshot = nil
	return nil
}

// Resize implements engine.Device
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screen = raster.NewImage(width, height)
	d.snapshot = nil
	return nil
}

// Screen returns the default framebuffer
func (d *Device) Screen() *raster.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen
}

// Snapshot returns the last composited frame as 8-bit RGBA. The image is
// shared until the next Composite.
func (d *Device) Snapshot() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snapshot == nil {
		d.snapshot = d.screen.ToRGBA(nil)
	}
	return d.snapshot, nil
}
