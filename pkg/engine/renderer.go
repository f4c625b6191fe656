package engine

import (
	"errors"
	"fmt"

	"multipass/pkg/compositor"
	"multipass/pkg/effects"
	"multipass/pkg/scene"
)

// ErrTargetReleased is returned by devices when a released target is used
var ErrTargetReleased = errors.New("render target already released")

// Target is an offscreen color buffer owned by a device
type Target interface {
	// Size returns the target dimensions in pixels
	Size() (width, height int)

	// Release frees the target. Releasing twice is a no-op.
	Release()
}

// Device defines the interface for all rendering backends
type Device interface {
	// NewTarget allocates an offscreen target
	NewTarget(width, height int) (Target, error)

	// DrawView clears dst and renders the objects selected by view
	DrawView(dst Target, view *scene.View) error

	// ApplyEffect runs one image-space effect from src into dst
	ApplyEffect(fx effects.Effect, src, dst Target) error

	// Copy copies src into dst
	Copy(src, dst Target) error

	// Composite blends the bound inputs onto the default framebuffer
	Composite(c *compositor.Compositor, u Uniforms) error

	// Resize changes the default framebuffer size
	Resize(width, height int) error
}

// Presenter shows composited frames
type Presenter interface {
	// Present displays the frame just composited
	Present(frame uint64) error

	// ShouldClose reports whether the host asked to stop
	ShouldClose() bool
}

// Uniforms is the compositor's input binding: one target per slot plus the
// elapsed time.
type Uniforms struct {
	Inputs []Target
	Time   float32
}

// Bind points the input slots at targets. The count must match the
// compositor's input count.
func (u *Uniforms) Bind(inputs []Target, slots int) error {
	if len(inputs) != slots {
		return fmt.Errorf("%w: %d targets for %d inputs", compositor.ErrInputMismatch, len(inputs), slots)
	}
	u.Inputs = append(u.Inputs[:0], inputs...)
	return nil
}

func sameSize(a, b Target) bool {
	aw, ah := a.Size()
	bw, bh := b.Size()
	return aw == bw && ah == bh
}
