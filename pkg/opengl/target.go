package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Target is a framebuffer object with an RGBA8 color texture and, for
// scene passes, a depth renderbuffer.
type Target struct {
	fbo      uint32
	texture  uint32
	rbo      uint32
	width    int
	height   int
	released bool
}

// newTarget creates a framebuffer, following the usual FBO setup: color
// texture with linear filtering, optional depth renderbuffer, completeness check.
func newTarget(width, height int, depth bool) (*Target, error) {
	t := &Target{width: width, height: height}

	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)

	gl.GenTextures(1, &t.texture)
	gl.BindTexture(gl.TEXTURE_2D, t.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.texture, 0)

	if depth {
		gl.GenRenderbuffers(1, &t.rbo)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.rbo)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH24_STENCIL8, int32(width), int32(height))
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, gl.RENDERBUFFER, t.rbo)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		t.Release()
		return nil, fmt.Errorf("framebuffer %dx%d not complete: 0x%x", width, height, status)
	}
	return t, nil
}

// Size implements engine.Target
func (t *Target) Size() (int, int) { return t.width, t.height }

// Release implements engine.Target
func (t *Target) Release() {
	if t == nil || t.released {
		return
	}
	t.released = true
	// zero names were never generated
	if t.rbo != 0 {
		gl.DeleteRenderbuffers(1, &t.rbo)
	}
	if t.texture != 0 {
		gl.DeleteTextures(1, &t.texture)
	}
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
	}
}

func (t *Target) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, int32(t.width), int32(t.height))
}
