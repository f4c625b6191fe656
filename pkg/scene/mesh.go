package scene

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is indexed triangle geometry. UVs use the glTF convention: v=0 is
// the top row of the texture image.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
}

// Material is a diffuse material: base color, optionally modulated by a texture.
type Material struct {
	BaseColor mgl32.Vec4
	Texture   *image.RGBA
}

// Part is one mesh/material pair of a model with its model-space transform.
type Part struct {
	Mesh     *Mesh
	Material Material
	Local    mgl32.Mat4
}

// Model is a renderable asset made of one or more parts.
type Model struct {
	Name  string
	Parts []Part
}

// withTexture returns a copy of m whose parts all use tex. Meshes are
// shared with m; materials are not.
func (m *Model) withTexture(tex *image.RGBA) *Model {
	c := &Model{Name: m.Name, Parts: slices.Clone(m.Parts)}
	for i := range c.Parts {
		c.Parts[i].Material.Texture = tex
	}
	return c
}

// Validate checks index bounds and attribute lengths.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if n == 0 {
		return fmt.Errorf("mesh has no positions")
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(m.Indices))
	}
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return fmt.Errorf("normal count %d does not match position count %d", len(m.Normals), n)
	}
	if len(m.UVs) != 0 && len(m.UVs) != n {
		return fmt.Errorf("uv count %d does not match position count %d", len(m.UVs), n)
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// TriangleCount returns the number of indexed triangles
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// ComputeNormals replaces the normals with area-weighted vertex normals.
func (m *Mesh) ComputeNormals() {
	normals := make([]mgl32.Vec3, len(m.Positions))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		pa, pb, pc := m.Positions[a], m.Positions[b], m.Positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	m.Normals = normals
}

// Bounds returns the axis-aligned bounding box of the positions.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Positions) == 0 {
		return
	}
	lo, hi = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = float32(math.Min(float64(lo[k]), float64(p[k])))
			hi[k] = float32(math.Max(float64(hi[k]), float64(p[k])))
		}
	}
	return
}

type boxFace struct {
	normal, right, up mgl32.Vec3
}

// face order +X, -X, +Y, -Y, +Z, -Z; right x up == normal keeps the
// triangles counter-clockwise seen from outside.
var boxFaces = [6]boxFace{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

func absVec(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.Abs(v[0]), mgl32.Abs(v[1]), mgl32.Abs(v[2])}
}

// NewBox builds a box centered at the origin with 24 vertices, so every
// face maps the full texture.
func NewBox(width, height, depth float32) *Mesh {
	half := mgl32.Vec3{width / 2, height / 2, depth / 2}
	m := &Mesh{
		Positions: make([]mgl32.Vec3, 0, 24),
		Normals:   make([]mgl32.Vec3, 0, 24),
		UVs:       make([]mgl32.Vec2, 0, 24),
		Indices:   make([]uint32, 0, 36),
	}

	for _, f := range boxFaces {
		center := f.normal.Mul(absVec(f.normal).Dot(half))
		r := f.right.Mul(absVec(f.right).Dot(half))
		u := f.up.Mul(absVec(f.up).Dot(half))

		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions,
			center.Sub(r).Sub(u), // bottom left
			center.Add(r).Sub(u), // bottom right
			center.Add(r).Add(u), // top right
			center.Sub(r).Add(u), // top left
		)
		m.Normals = append(m.Normals, f.normal, f.normal, f.normal, f.normal)
		m.UVs = append(m.UVs,
			mgl32.Vec2{0, 1},
			mgl32.Vec2{1, 1},
			mgl32.Vec2{1, 0},
			mgl32.Vec2{0, 0},
		)
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// NewSphere builds a UV sphere. Segment counts below 3 and 2 are raised to
// those minimums.
func NewSphere(radius float32, widthSegments, heightSegments int) *Mesh {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}

	m := &Mesh{}
	grid := make([][]uint32, heightSegments+1)
	for iy := 0; iy <= heightSegments; iy++ {
		v := float64(iy) / float64(heightSegments)
		row := make([]uint32, widthSegments+1)
		for ix := 0; ix <= widthSegments; ix++ {
			u := float64(ix) / float64(widthSegments)
			n := mgl32.Vec3{
				float32(-math.Cos(u*2*math.Pi) * math.Sin(v*math.Pi)),
				float32(math.Cos(v * math.Pi)),
				float32(math.Sin(u*2*math.Pi) * math.Sin(v*math.Pi)),
			}
			row[ix] = uint32(len(m.Positions))
			m.Positions = append(m.Positions, n.Mul(radius))
			m.Normals = append(m.Normals, n)
			m.UVs = append(m.UVs, mgl32.Vec2{float32(u), float32(v)})
		}
		grid[iy] = row
	}

	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			if iy != 0 {
				m.Indices = append(m.Indices, a, b, d)
			}
			if iy != heightSegments-1 {
				m.Indices = append(m.Indices, b, c, d)
			}
		}
	}
	return m
}
