package scene

import (
	"errors"
	"image"
	"io"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"multipass/internal/logger"
	"multipass/pkg/config"
)

func quietLogger() *logger.Logger {
	return logger.NewWriterLogger("error", io.Discard)
}

func checkOutwardWinding(t *testing.T, m *Mesh, center mgl32.Vec3) {
	t.Helper()
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Positions[m.Indices[i]], m.Positions[m.Indices[i+1]], m.Positions[m.Indices[i+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Len() < 1e-9 {
			continue
		}
		centroid := a.Add(b).Add(c).Mul(1.0 / 3)
		if n.Dot(centroid.Sub(center)) <= 0 {
			t.Fatalf("triangle %d faces inward", i/3)
		}
	}
}

func TestNewBox(t *testing.T) {
	m := NewBox(9, 6, 2)
	if len(m.Positions) != 24 || len(m.Indices) != 36 {
		t.Fatalf("box has %d vertices, %d indices", len(m.Positions), len(m.Indices))
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	lo, hi := m.Bounds()
	if lo != (mgl32.Vec3{-4.5, -3, -1}) || hi != (mgl32.Vec3{4.5, 3, 1}) {
		t.Errorf("bounds = %v %v", lo, hi)
	}
	checkOutwardWinding(t, m, mgl32.Vec3{})

	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Positions[m.Indices[i]], m.Positions[m.Indices[i+1]], m.Positions[m.Indices[i+2]]
		face := b.Sub(a).Cross(c.Sub(a)).Normalize()
		if face.Dot(m.Normals[m.Indices[i]]) < 0.999 {
			t.Fatalf("triangle %d winding disagrees with its normal", i/3)
		}
	}
}

func TestNewSphere(t *testing.T) {
	m := NewSphere(2, 32, 16)
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if got, want := len(m.Positions), 33*17; got != want {
		t.Errorf("vertices = %d, want %d", got, want)
	}
	if got, want := m.TriangleCount(), 32*16*2-2*32; got != want {
		t.Errorf("triangles = %d, want %d", got, want)
	}
	for i, p := range m.Positions {
		if d := p.Len(); math.Abs(float64(d-2)) > 1e-5 {
			t.Fatalf("vertex %d at distance %v", i, d)
		}
	}
	checkOutwardWinding(t, m, mgl32.Vec3{})
}

func TestComputeNormals(t *testing.T) {
	m := NewBox(1, 1, 1)
	want := m.Normals
	m.Normals = nil
	m.ComputeNormals()
	for i := range want {
		if m.Normals[i].Sub(want[i]).Len() > 1e-5 {
			t.Fatalf("normal %d = %v, want %v", i, m.Normals[i], want[i])
		}
	}
}

func TestMeshValidate(t *testing.T) {
	m := &Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 3},
	}
	if err := m.Validate(); err == nil {
		t.Error("out of range index accepted")
	}
	m.Indices = []uint32{0, 1}
	if err := m.Validate(); err == nil {
		t.Error("partial triangle accepted")
	}
}

func TestSpinFullTurnReturnsToStart(t *testing.T) {
	o := &Object{Name: "m", Scale: mgl32.Vec3{2, 2, 2}, Rotation: mgl32.Vec3{0.3, 0, 0}}
	start := o.Transform()
	for i := 0; i < 360; i++ {
		o.RotateY(2 * math.Pi / 360)
	}
	if !o.Transform().ApproxEqualThreshold(start, 1e-5) {
		t.Errorf("transform after full turn = %v, want %v", o.Transform(), start)
	}
	if y := o.Yaw(); y >= 2*math.Pi || y < 0 {
		t.Errorf("yaw %v not wrapped", y)
	}
}

func TestAnimateSpinsOnlySpinningObjects(t *testing.T) {
	s := New(&Camera{}, HemisphereLight{})
	s.Add(&Object{Name: "a", Spin: 0.01})
	s.Add(&Object{Name: "b"})
	for i := 0; i < 10; i++ {
		s.Animate()
	}
	a, _ := s.Object("a")
	b, _ := s.Object("b")
	if math.Abs(a.Yaw()-0.1) > 1e-6 {
		t.Errorf("a yaw = %v", a.Yaw())
	}
	if b.Yaw() != 0 {
		t.Errorf("b yaw = %v", b.Yaw())
	}
}

func TestViewSelectsSubset(t *testing.T) {
	s := New(&Camera{}, HemisphereLight{})
	for _, n := range []string{"x", "y", "z"} {
		s.Add(&Object{Name: n})
	}
	v := s.View("z", "x", "missing")
	objs := v.Objects()
	if len(objs) != 2 || objs[0].Name != "x" || objs[1].Name != "z" {
		t.Fatalf("view objects = %v", objs)
	}
	if v.Contains("y") {
		t.Error("view contains y")
	}
	if len(s.Objects()) != 3 {
		t.Error("view mutated the scene")
	}
}

func TestSceneAddReplaces(t *testing.T) {
	s := New(&Camera{}, HemisphereLight{})
	s.Add(&Object{Name: "a"})
	s.Add(&Object{Name: "a", Spin: 1})
	if len(s.Objects()) != 1 || s.Objects()[0].Spin != 1 {
		t.Fatalf("objects = %v", s.Objects())
	}
}

func TestHemisphereIrradiance(t *testing.T) {
	l := HemisphereLight{Sky: mgl32.Vec3{1, 1, 1}, Ground: mgl32.Vec3{0, 0, 0}, Intensity: math.Pi}
	if got := l.Irradiance(mgl32.Vec3{0, 1, 0}); got.Sub(mgl32.Vec3{1, 1, 1}).Len() > 1e-6 {
		t.Errorf("up = %v", got)
	}
	if got := l.Irradiance(mgl32.Vec3{0, -2, 0}); got.Len() > 1e-6 {
		t.Errorf("down = %v", got)
	}
	if got := l.Irradiance(mgl32.Vec3{1, 0, 0}); math.Abs(float64(got[0]-0.5)) > 1e-6 {
		t.Errorf("side = %v", got)
	}
}

func TestBuildStrictMissingMesh(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := Build(cfg, &Assets{Texture: image.NewRGBA(image.Rect(0, 0, 1, 1))}, quietLogger())
	if !errors.Is(err, ErrMissingAsset) {
		t.Fatalf("err = %v, want ErrMissingAsset", err)
	}
}

func TestBuildLenientOmitsObjects(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scene.RequireAssets = false
	s, err := Build(cfg, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Object("sandwich"); ok {
		t.Error("mesh object built without a mesh")
	}
	if _, ok := s.Object("box"); ok {
		t.Error("textured box built without a texture")
	}
	sphere, ok := s.Object("sphere")
	if !ok {
		t.Fatal("sphere missing")
	}
	if c := sphere.Model.Parts[0].Material.BaseColor; c != (mgl32.Vec4{1, 0, 0, 1}) {
		t.Errorf("sphere color = %v", c)
	}
	if sphere.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("default scale = %v", sphere.Scale)
	}
}

func TestBuildSharesLoadedAssets(t *testing.T) {
	cfg := config.DefaultConfig()
	model := &Model{Name: "m", Parts: []Part{{Mesh: NewBox(1, 1, 1), Local: mgl32.Ident4()}}}
	tex := image.NewRGBA(image.Rect(0, 0, 2, 2))
	s, err := Build(cfg, &Assets{Model: model, Texture: tex}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Objects()) != 3 {
		t.Fatalf("objects = %d", len(s.Objects()))
	}
	sw, _ := s.Object("sandwich")
	if sw.Model != model || sw.Spin != 0.01 {
		t.Errorf("sandwich = %+v", sw)
	}
	box, _ := s.Object("box")
	if box.Model.Parts[0].Material.Texture != tex {
		t.Error("box texture not attached")
	}
	if s.Camera.Aspect != cfg.Graphics.Aspect() {
		t.Errorf("aspect = %v", s.Camera.Aspect)
	}
}

func TestBuildTexturedMeshDoesNotAlterSharedModel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scene.Objects = []config.ObjectConfig{
		{Name: "plain", Kind: config.KindMesh},
		{Name: "skinned", Kind: config.KindMesh, Texture: true},
	}

	own := image.NewRGBA(image.Rect(0, 0, 1, 1))
	model := &Model{Name: "m", Parts: []Part{{
		Mesh:     NewBox(1, 1, 1),
		Material: Material{BaseColor: mgl32.Vec4{1, 1, 1, 1}, Texture: own},
		Local:    mgl32.Ident4(),
	}}}
	image2 := image.NewRGBA(image.Rect(0, 0, 2, 2))

	s, err := Build(cfg, &Assets{Model: model, Texture: image2}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	plain, _ := s.Object("plain")
	skinned, _ := s.Object("skinned")

	if plain.Model.Parts[0].Material.Texture != own {
		t.Error("plain object lost the model's own texture")
	}
	if model.Parts[0].Material.Texture != own {
		t.Error("loaded model was modified")
	}
	if skinned.Model.Parts[0].Material.Texture != image2 {
		t.Error("skinned object texture not attached")
	}
	if skinned.Model.Parts[0].Mesh != model.Parts[0].Mesh {
		t.Error("mesh should be shared")
	}
}
