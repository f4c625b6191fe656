package raster

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"multipass/pkg/scene"
)

// vertex is a clip-space vertex with its attributes pre-divided by w
type vertex struct {
	sx, sy float32 // screen position, pixels
	z      float32 // NDC depth
	invW   float32
	uv     mgl32.Vec2 // divided by w
	n      mgl32.Vec3 // world normal divided by w
}

type triangle struct {
	v        [3]vertex
	minX     int
	maxX     int
	minY     int
	maxY     int
	area     float32
	material *scene.Material
}

// Rasterizer draws scene views into an Image with a depth buffer. It is
// not safe for concurrent use; each device owns one.
type Rasterizer struct {
	Workers int

	depth []float32
	tris  []triangle
}

// NewRasterizer creates a rasterizer that shades with up to workers
// goroutines.
func NewRasterizer(workers int) *Rasterizer {
	return &Rasterizer{Workers: workers}
}

// Draw clears dst to transparent black and renders the objects of view.
// Triangles crossing the near plane are dropped whole, back faces are culled.
func (r *Rasterizer) Draw(dst *Image, view *scene.View) {
	dst.Fill([4]float32{})
	n := dst.Width * dst.Height
	if cap(r.depth) < n {
		r.depth = make([]float32, n)
	}
	r.depth = r.depth[:n]
	for i := range r.depth {
		r.depth[i] = math.MaxFloat32
	}

	r.tris = r.tris[:0]
	vp := view.Camera().ViewProjection()
	for _, obj := range view.Objects() {
		if obj.Model == nil {
			continue
		}
		world := obj.Transform()
		for pi := range obj.Model.Parts {
			part := &obj.Model.Parts[pi]
			r.setup(dst, vp, world.Mul4(part.Local), part)
		}
	}

	light := view.Light()
	Rows(dst.Height, r.Workers, func(y0, y1 int) {
		for i := range r.tris {
			t := &r.tris[i]
			if t.maxY < y0 || t.minY >= y1 {
				continue
			}
			r.fill(dst, t, max(t.minY, y0), min(t.maxY, y1-1), light)
		}
	})
}

func (r *Rasterizer) setup(dst *Image, vp, model mgl32.Mat4, part *scene.Part) {
	mesh := part.Mesh
	if mesh == nil || len(mesh.Indices) < 3 {
		return
	}
	mvp := vp.Mul4(model)
	normalMat := model.Mat3().Inv().Transpose()

	w, h := float32(dst.Width), float32(dst.Height)
	verts := make([]vertex, len(mesh.Positions))
	valid := make([]bool, len(mesh.Positions))
	for i, p := range mesh.Positions {
		clip := mvp.Mul4x1(p.Vec4(1))
		if clip[3] <= 1e-6 {
			continue
		}
		invW := 1 / clip[3]
		ndc := clip.Vec3().Mul(invW)
		if ndc[2] < -1 {
			continue
		}
		var uv mgl32.Vec2
		if len(mesh.UVs) > i {
			uv = mesh.UVs[i]
		}
		var nrm mgl32.Vec3
		if len(mesh.Normals) > i {
			nrm = normalMat.Mul3x1(mesh.Normals[i])
		}
		verts[i] = vertex{
			sx:   (ndc[0]*0.5 + 0.5) * w,
			sy:   (0.5 - ndc[1]*0.5) * h,
			z:    ndc[2],
			invW: invW,
			uv:   uv.Mul(invW),
			n:    nrm.Mul(invW),
		}
		valid[i] = true
	}

	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a, b, c := mesh.Indices[i], mesh.Indices[i+1], mesh.Indices[i+2]
		if !valid[a] || !valid[b] || !valid[c] {
			continue
		}
		t := triangle{v: [3]vertex{verts[a], verts[b], verts[c]}, material: &part.Material}
		// screen y points down, so counter-clockwise in NDC is negative here
		t.area = edge(t.v[0].sx, t.v[0].sy, t.v[1].sx, t.v[1].sy, t.v[2].sx, t.v[2].sy)
		if t.area >= 0 {
			continue
		}
		minX := min(t.v[0].sx, t.v[1].sx, t.v[2].sx)
		maxX := max(t.v[0].sx, t.v[1].sx, t.v[2].sx)
		minY := min(t.v[0].sy, t.v[1].sy, t.v[2].sy)
		maxY := max(t.v[0].sy, t.v[1].sy, t.v[2].sy)
		t.minX = max(0, int(math.Floor(float64(minX))))
		t.maxX = min(dst.Width-1, int(math.Ceil(float64(maxX))))
		t.minY = max(0, int(math.Floor(float64(minY))))
		t.maxY = min(dst.Height-1, int(math.Ceil(float64(maxY))))
		if t.minX > t.maxX || t.minY > t.maxY {
			continue
		}
		r.tris = append(r.tris, t)
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (r *Rasterizer) fill(dst *Image, t *triangle, y0, y1 int, light scene.HemisphereLight) {
	v0, v1, v2 := &t.v[0], &t.v[1], &t.v[2]
	inv := 1 / t.area
	mat := t.material

	for y := y0; y <= y1; y++ {
		py := float32(y) + 0.5
		for x := t.minX; x <= t.maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(v1.sx, v1.sy, v2.sx, v2.sy, px, py) * inv
			w1 := edge(v2.sx, v2.sy, v0.sx, v0.sy, px, py) * inv
			w2 := edge(v0.sx, v0.sy, v1.sx, v1.sy, px, py) * inv
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*v0.z + w1*v1.z + w2*v2.z
			if z > 1 {
				continue
			}
			di := y*dst.Width + x
			if z >= r.depth[di] {
				continue
			}
			r.depth[di] = z

			invW := w0*v0.invW + w1*v1.invW + w2*v2.invW
			uv := v0.uv.Mul(w0).Add(v1.uv.Mul(w1)).Add(v2.uv.Mul(w2)).Mul(1 / invW)
			n := v0.n.Mul(w0).Add(v1.n.Mul(w1)).Add(v2.n.Mul(w2))

			albedo := mat.BaseColor
			if mat.Texture != nil {
				tex := SampleTexture(mat.Texture, uv[0], uv[1])
				albedo = mgl32.Vec4{albedo[0] * tex[0], albedo[1] * tex[1], albedo[2] * tex[2], albedo[3] * tex[3]}
			}
			irr := light.Irradiance(n)
			a := albedo[3]
			dst.Put(x, y, [4]float32{
				albedo[0] * irr[0] * a,
				albedo[1] * irr[1] * a,
				albedo[2] * irr[2] * a,
				a,
			})
		}
	}
}

// SampleTexture reads an 8-bit texture bilinearly with repeat addressing.
// Coordinates follow glTF: v = 0 is the top row.
func SampleTexture(img *image.RGBA, u, v float32) [4]float32 {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return [4]float32{1, 1, 1, 1}
	}
	x := u*float32(w) - 0.5
	y := v*float32(h) - 0.5
	x0 := int(math.Floor(float64(x)))
	y0 := int(math.Floor(float64(y)))
	fx := x - float32(x0)
	fy := y - float32(y0)

	texel := func(tx, ty int) [4]float32 {
		tx = ((tx % w) + w) % w
		ty = ((ty % h) + h) % h
		i := img.PixOffset(b.Min.X+tx, b.Min.Y+ty)
		p := img.Pix[i : i+4 : i+4]
		return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
	}
	c00, c10 := texel(x0, y0), texel(x0+1, y0)
	c01, c11 := texel(x0, y0+1), texel(x0+1, y0+1)

	var out [4]float32
	for k := 0; k < 4; k++ {
		top := c00[k] + (c10[k]-c00[k])*fx
		bottom := c01[k] + (c11[k]-c01[k])*fx
		out[k] = top + (bottom-top)*fy
	}
	return out
}
