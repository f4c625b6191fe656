// Package opengl implements the rendering device on OpenGL 4.1 core.
package opengl

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"multipass/internal/logger"
	"multipass/pkg/compositor"
	"multipass/pkg/effects"
	"multipass/pkg/engine"
	"multipass/pkg/scene"
)

// gpuMesh is an uploaded mesh: interleaved position, normal, uv
type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
}

// bloomChain holds the high-pass target and the per-level blur targets of
// one bloom effect at one size
type bloomChain struct {
	width, height int
	bright        *Target
	horizontal    [effects.BloomMips]*Target
	vertical      [effects.BloomMips]*Target
}

// release frees every allocated target; unallocated slots are nil
func (c *bloomChain) release() {
	c.bright.Release()
	for i := range c.horizontal {
		c.horizontal[i].Release()
		c.vertical[i].Release()
	}
}

// Device renders through OpenGL. All calls must come from the thread that
// owns the context.
type Device struct {
	logger *logger.Logger
	width  int
	height int

	scene     *program
	copy      *program
	highPass  *program
	blur      *program
	bloom     *program
	dotScreen *program
	rgbShift  *program
	pixelate  *program
	output    *program
	composite *program

	quadVAO uint32
	quadVBO uint32

	meshes   map[*scene.Mesh]*gpuMesh
	textures map[*image.RGBA]uint32
	blooms   map[*effects.Bloom]*bloomChain
}

var _ engine.Device = (*Device)(nil)

// NewDevice compiles every program and sets up the full-screen quad. A GL
// context must be current.
func NewDevice(width, height int, log *logger.Logger) (*Device, error) {
	d := &Device{
		logger:   log,
		width:    width,
		height:   height,
		meshes:   make(map[*scene.Mesh]*gpuMesh),
		textures: make(map[*image.RGBA]uint32),
		blooms:   make(map[*effects.Bloom]*bloomChain),
	}

	sources := []struct {
		dst      **program
		name     string
		vertex   string
		fragment string
	}{
		{&d.scene, "scene", sceneVertexShader, sceneFragmentShader},
		{&d.copy, "copy", fullscreenVertexShader, copyFragmentShader},
		{&d.highPass, "highpass", fullscreenVertexShader, highPassFragmentShader},
		{&d.blur, "blur", fullscreenVertexShader, blurFragmentShader},
		{&d.bloom, "bloom", fullscreenVertexShader, bloomCompositeFragmentShader},
		{&d.dotScreen, "dotscreen", fullscreenVertexShader, dotScreenFragmentShader},
		{&d.rgbShift, "rgbshift", fullscreenVertexShader, rgbShiftFragmentShader},
		{&d.pixelate, "pixelate", fullscreenVertexShader, pixelateFragmentShader},
		{&d.output, "output", fullscreenVertexShader, outputFragmentShader},
		{&d.composite, "composite", fullscreenVertexShader, compositeFragmentShader},
	}
	for _, s := range sources {
		p, err := newProgram(s.name, s.vertex, s.fragment)
		if err != nil {
			d.Close()
			return nil, err
		}
		*s.dst = p
	}

	d.setupScreenQuad()

	gl.Disable(gl.BLEND)
	gl.DepthFunc(gl.LESS)
	gl.FrontFace(gl.CCW)
	gl.CullFace(gl.BACK)

	log.Infof("OpenGL device ready: %s", gl.GoStr(gl.GetString(gl.RENDERER)))
	return d, nil
}

// setupScreenQuad creates a full-screen triangle strip
func (d *Device) setupScreenQuad() {
	vertices := []float32{
		-1, -1,
		1, -1,
		-1, 1,
		1, 1,
	}

	gl.GenVertexArrays(1, &d.quadVAO)
	gl.GenBuffers(1, &d.quadVBO)
	gl.BindVertexArray(d.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)

	gl.BindVertexArray(0)
}

func (d *Device) drawQuad() {
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
}

func bindTexture(unit int, texture uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func asTargets(ts ...engine.Target) ([]*Target, error) {
	out := make([]*Target, len(ts))
	for i, t := range ts {
		gt, ok := t.(*Target)
		if !ok {
			return nil, fmt.Errorf("target %T does not belong to the OpenGL device", t)
		}
		if gt.released {
			return nil, engine.ErrTargetReleased
		}
		out[i] = gt
	}
	return out, nil
}

// NewTarget implements engine.Device
func (d *Device) NewTarget(width, height int) (engine.Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return newTarget(width, height, true)
}

// uploadMesh returns the GPU copy of a mesh, uploading it on first use
func (d *Device) uploadMesh(m *scene.Mesh) *gpuMesh {
	if g, ok := d.meshes[m]; ok {
		return g
	}

	data := make([]float32, 0, len(m.Positions)*8)
	for i, p := range m.Positions {
		var n mgl32.Vec3
		if i < len(m.Normals) {
			n = m.Normals[i]
		}
		var uv mgl32.Vec2
		if i < len(m.UVs) {
			uv = m.UVs[i]
		}
		data = append(data, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	}

	g := &gpuMesh{count: int32(len(m.Indices))}
	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)

	gl.GenBuffers(1, &g.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.Indices)*4, gl.Ptr(m.Indices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 8*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, 8*4, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, 8*4, gl.PtrOffset(6*4))
	gl.EnableVertexAttribArray(2)

	gl.BindVertexArray(0)
	d.meshes[m] = g
	d.logger.Debugf("Uploaded mesh: %d vertices, %d triangles", len(m.Positions), m.TriangleCount())
	return g
}

// uploadTexture returns the GL texture for an image. Rows are uploaded top
// first, so glTF texture coordinates sample correctly.
func (d *Device) uploadTexture(img *image.RGBA) uint32 {
	if id, ok := d.textures[img]; ok {
		return id
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)

	b := img.Bounds()
	pix := img.Pix
	if img.Stride != b.Dx()*4 {
		packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(packed.Pix[y*packed.Stride:(y+1)*packed.Stride], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		pix = packed.Pix
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.GenerateMipmap(gl.TEXTURE_2D)

	d.textures[img] = id
	d.logger.Debugf("Uploaded texture %dx%d", b.Dx(), b.Dy())
	return id
}

// DrawView implements engine.Device
func (d *Device) DrawView(dst engine.Target, view *scene.View) error {
	ts, err := asTargets(dst)
	if err != nil {
		return err
	}
	t := ts[0]
	t.bind()
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	defer func() {
		gl.Disable(gl.DEPTH_TEST)
		gl.Disable(gl.CULL_FACE)
	}()

	p := d.scene
	p.use()
	vp := view.Camera().ViewProjection()
	gl.UniformMatrix4fv(p.loc("viewProjection"), 1, false, &vp[0])
	light := view.Light()
	gl.Uniform3f(p.loc("skyColor"), light.Sky[0], light.Sky[1], light.Sky[2])
	gl.Uniform3f(p.loc("groundColor"), light.Ground[0], light.Ground[1], light.Ground[2])
	gl.Uniform1f(p.loc("lightIntensity"), light.Intensity)
	gl.Uniform1i(p.loc("baseMap"), 0)

	for _, obj := range view.Objects() {
		if obj.Model == nil {
			continue
		}
		world := obj.Transform()
		for i := range obj.Model.Parts {
			part := &obj.Model.Parts[i]
			if part.Mesh == nil || len(part.Mesh.Indices) == 0 {
				continue
			}
			model := world.Mul4(part.Local)
			normal := model.Mat3().Inv().Transpose()
			gl.UniformMatrix4fv(p.loc("model"), 1, false, &model[0])
			gl.UniformMatrix3fv(p.loc("normalMatrix"), 1, false, &normal[0])

			c := part.Material.BaseColor
			gl.Uniform4f(p.loc("baseColor"), c[0], c[1], c[2], c[3])
			if part.Material.Texture != nil {
				bindTexture(0, d.uploadTexture(part.Material.Texture))
				gl.Uniform1i(p.loc("useMap"), 1)
			} else {
				gl.Uniform1i(p.loc("useMap"), 0)
			}

			g := d.uploadMesh(part.Mesh)
			gl.BindVertexArray(g.vao)
			gl.DrawElements(gl.TRIANGLES, g.count, gl.UNSIGNED_INT, gl.PtrOffset(0))
		}
	}
	gl.BindVertexArray(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

// fullscreen runs p over dst reading src on unit 0 as tDiffuse
func (d *Device) fullscreen(p *program, src, dst *Target, setUniforms func(p *program)) {
	dst.bind()
	p.use()
	bindTexture(0, src.texture)
	gl.Uniform1i(p.loc("tDiffuse"), 0)
	if setUniforms != nil {
		setUniforms(p)
	}
	d.drawQuad()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// ApplyEffect implements engine.Device
func (d *Device) ApplyEffect(fx effects.Effect, src, dst engine.Target) error {
	ts, err := asTargets(src, dst)
	if err != nil {
		return err
	}
	s, t := ts[0], ts[1]
	if s == t {
		return fmt.Errorf("%s: source and destination are the same target", fx.Name())
	}

	switch e := fx.(type) {
	case *effects.Bloom:
		return d.applyBloom(e, s, t)
	case *effects.DotScreen:
		d.fullscreen(d.dotScreen, s, t, func(p *program) {
			gl.Uniform2f(p.loc("center"), e.Center[0], e.Center[1])
			gl.Uniform1f(p.loc("angle"), e.Angle)
			gl.Uniform1f(p.loc("scale"), e.Scale)
			gl.Uniform2f(p.loc("tSize"), e.Size[0], e.Size[1])
		})
	case *effects.RGBShift:
		d.fullscreen(d.rgbShift, s, t, func(p *program) {
			gl.Uniform1f(p.loc("amount"), e.Amount)
			gl.Uniform1f(p.loc("angle"), e.Angle)
		})
	case *effects.Pixelate:
		d.fullscreen(d.pixelate, s, t, func(p *program) {
			gl.Uniform1f(p.loc("grid"), e.Grid)
		})
	case *effects.Output:
		d.fullscreen(d.output, s, t, nil)
	default:
		return fmt.Errorf("effect %s has no OpenGL program", fx.Name())
	}
	return nil
}

func (d *Device) bloomChainFor(e *effects.Bloom, width, height int) (*bloomChain, error) {
	if c, ok := d.blooms[e]; ok {
		if c.width == width && c.height == height {
			return c, nil
		}
		c.release()
		delete(d.blooms, e)
	}

	c, err := newBloomChain(width, height, newTarget)
	if err != nil {
		return nil, err
	}
	d.blooms[e] = c
	return c, nil
}

// newBloomChain allocates every target of a chain through alloc. On failure
// the targets allocated so far are released.
func newBloomChain(width, height int, alloc func(w, h int, depth bool) (*Target, error)) (*bloomChain, error) {
	c := &bloomChain{width: width, height: height}
	var err error
	if c.bright, err = alloc(width, height, false); err != nil {
		return nil, err
	}
	for i, size := range effects.MipSizes(width, height) {
		if c.horizontal[i], err = alloc(size[0], size[1], false); err != nil {
			c.release()
			return nil, fmt.Errorf("bloom level %d: %w", i, err)
		}
		if c.vertical[i], err = alloc(size[0], size[1], false); err != nil {
			c.release()
			return nil, fmt.Errorf("bloom level %d: %w", i, err)
		}
	}
	return c, nil
}

func (d *Device) applyBloom(e *effects.Bloom, src, dst *Target) error {
	chain, err := d.bloomChainFor(e, src.width, src.height)
	if err != nil {
		return fmt.Errorf("bloom targets: %w", err)
	}

	d.fullscreen(d.highPass, src, chain.bright, func(p *program) {
		gl.Uniform1f(p.loc("luminosityThreshold"), e.Threshold)
		gl.Uniform1f(p.loc("smoothWidth"), effects.BloomSmoothWidth)
	})

	input := chain.bright
	for i := range effects.BloomMips {
		coeffs := effects.GaussianCoefficients(effects.BloomKernelRadii[i])
		h, v := chain.horizontal[i], chain.vertical[i]
		d.blurPass(input, h, coeffs, 1, 0)
		d.blurPass(h, v, coeffs, 0, 1)
		input = v
	}

	var factors [effects.BloomMips]float32
	for i := range factors {
		factors[i] = e.MipFactor(i) * e.Strength
	}
	d.fullscreen(d.bloom, src, dst, func(p *program) {
		for i, v := range chain.vertical {
			bindTexture(i+1, v.texture)
			gl.Uniform1i(p.loc(fmt.Sprintf("blurTexture%d", i+1)), int32(i+1))
		}
		gl.Uniform1fv(p.loc("bloomFactors"), effects.BloomMips, &factors[0])
	})
	gl.ActiveTexture(gl.TEXTURE0)
	return nil
}

func (d *Device) blurPass(src, dst *Target, coeffs []float32, dx, dy float32) {
	p := d.blur
	dst.bind()
	p.use()
	bindTexture(0, src.texture)
	gl.Uniform1i(p.loc("colorTexture"), 0)
	gl.Uniform2f(p.loc("invSize"), 1/float32(dst.width), 1/float32(dst.height))
	gl.Uniform2f(p.loc("direction"), dx, dy)
	gl.Uniform1i(p.loc("kernelRadius"), int32(len(coeffs)))
	gl.Uniform1fv(p.loc("coefficients"), int32(len(coeffs)), &coeffs[0])
	d.drawQuad()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Copy implements engine.Device
func (d *Device) Copy(src, dst engine.Target) error {
	ts, err := asTargets(src, dst)
	if err != nil {
		return err
	}
	d.fullscreen(d.copy, ts[0], ts[1], nil)
	return nil
}

// Composite implements engine.Device
func (d *Device) Composite(c *compositor.Compositor, u engine.Uniforms) error {
	if len(u.Inputs) != c.Inputs() {
		return fmt.Errorf("%w: %d bound for %d inputs", compositor.ErrInputMismatch, len(u.Inputs), c.Inputs())
	}
	ts, err := asTargets(u.Inputs...)
	if err != nil {
		return err
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(d.width), int32(d.height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	p := d.composite
	p.use()
	names := [compositor.MaxInputs]string{"inputA", "inputB", "inputC"}
	for i, t := range ts {
		bindTexture(i, t.texture)
		gl.Uniform1i(p.loc(names[i]), int32(i))
	}
	gl.Uniform1i(p.loc("inputCount"), int32(len(ts)))
	gl.Uniform1i(p.loc("mode"), int32(c.Mode()))
	gl.Uniform1f(p.loc("pixelate"), c.Pixelate())
	gl.Uniform1f(p.loc("time"), u.Time)
	d.drawQuad()
	gl.ActiveTexture(gl.TEXTURE0)
	return nil
}

// Resize implements engine.Device
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	d.width, d.height = width, height
	return nil
}

// Snapshot reads the default framebuffer into an image, top row first
func (d *Device) Snapshot() (*image.RGBA, error) {
	w, h := d.width, d.height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := make([]byte, w*h*4)

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(buf))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("glReadPixels failed: 0x%x", code)
	}

	// GL rows start at the bottom
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], buf[(h-1-y)*w*4:(h-y)*w*4])
	}
	return img, nil
}

// Close frees every GL object the device created
func (d *Device) Close() {
	for _, c := range d.blooms {
		c.release()
	}
	for _, g := range d.meshes {
		gl.DeleteVertexArrays(1, &g.vao)
		gl.DeleteBuffers(1, &g.vbo)
		gl.DeleteBuffers(1, &g.ebo)
	}
	for _, id := range d.textures {
		gl.DeleteTextures(1, &id)
	}
	for _, p := range []*program{d.scene, d.copy, d.highPass, d.blur, d.bloom, d.dotScreen, d.rgbShift, d.pixelate, d.output, d.composite} {
		if p != nil {
			p.delete()
		}
	}
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		gl.DeleteBuffers(1, &d.quadVBO)
	}
	d.meshes = nil
	d.textures = nil
	d.blooms = nil
}
