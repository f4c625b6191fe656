package raster

import (
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"multipass/pkg/scene"
)

func TestPutClamps(t *testing.T) {
	m := NewImage(1, 1)
	m.Put(0, 0, [4]float32{-1, 0.5, 2, 1.5})
	if got := m.Get(0, 0); got != [4]float32{0, 0.5, 1, 1} {
		t.Errorf("got %v", got)
	}
}

func TestSampleAtPixelCenters(t *testing.T) {
	m := NewImage(4, 2)
	m.Put(1, 0, [4]float32{1, 0, 0, 1}) // top row
	m.Put(2, 1, [4]float32{0, 0, 1, 1}) // bottom row

	if got := m.Sample(1.5/4, 1-0.5/2); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("top sample = %v", got)
	}
	if got := m.Sample(2.5/4, 0.5/2); got != [4]float32{0, 0, 1, 1} {
		t.Errorf("bottom sample = %v", got)
	}
	// halfway between two texels
	if got := m.Sample(1.0/4, 1-0.5/2); got[0] != 0.5 {
		t.Errorf("bilinear = %v", got)
	}
	// clamp to edge
	if got := m.Sample(-3, 5); got != m.Get(0, 0) {
		t.Errorf("clamped = %v", got)
	}
}

func TestShadeMatchesSample(t *testing.T) {
	src := NewImage(7, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			src.Put(x, y, [4]float32{float32(x) / 7, float32(y) / 5, 0, 1})
		}
	}
	dst := NewImage(7, 5)
	Shade(dst, 3, func(u, v float32) [4]float32 { return src.Sample(u, v) })
	for i := range src.Pix {
		if d := src.Pix[i] - dst.Pix[i]; d > 1e-6 || d < -1e-6 {
			t.Fatalf("pix %d: %v != %v", i, dst.Pix[i], src.Pix[i])
		}
	}
}

func TestRowsCoversEveryRowOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		var hits [97]int32
		Rows(len(hits), workers, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				atomic.AddInt32(&hits[y], 1)
			}
		})
		for y, n := range hits {
			if n != 1 {
				t.Fatalf("workers=%d row %d visited %d times", workers, y, n)
			}
		}
	}
}

func TestDrawImageInterfaces(t *testing.T) {
	m := NewImage(2, 2)
	m.Set(1, 1, color.RGBA{255, 0, 0, 255})
	if got := m.Get(1, 1); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("Set stored %v", got)
	}
	rgba := m.ToRGBA(nil)
	if got := rgba.RGBAAt(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("ToRGBA = %v", got)
	}
	back := FromImage(rgba)
	if back.Get(1, 1) != m.Get(1, 1) || back.Get(0, 0) != m.Get(0, 0) {
		t.Error("FromImage round trip mismatch")
	}
}

func TestSampleTextureTopRowIsVZero(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	if got := SampleTexture(img, 0.5, 0.25); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("v=0.25 -> %v", got)
	}
	if got := SampleTexture(img, 0.5, 0.75); got != [4]float32{0, 0, 1, 1} {
		t.Errorf("v=0.75 -> %v", got)
	}
}

func quad(z float32, color mgl32.Vec4, ccw bool) *scene.Model {
	m := &scene.Mesh{
		Positions: []mgl32.Vec3{{-1, -1, z}, {1, -1, z}, {1, 1, z}, {-1, 1, z}},
		Normals:   []mgl32.Vec3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
	if !ccw {
		m.Indices = []uint32{0, 2, 1, 0, 3, 2}
	}
	return &scene.Model{Parts: []scene.Part{{Mesh: m, Material: scene.Material{BaseColor: color}, Local: mgl32.Ident4()}}}
}

func testScene() *scene.Scene {
	cam := &scene.Camera{FOV: 90, Aspect: 1, Near: 0.1, Far: 100, Position: mgl32.Vec3{0, 0, 5}}
	return scene.New(cam, scene.HemisphereLight{Sky: mgl32.Vec3{1, 1, 1}, Intensity: 3.14159265})
}

func newObject(name string, model *scene.Model) *scene.Object {
	return &scene.Object{Name: name, Model: model, Scale: mgl32.Vec3{1, 1, 1}}
}

func TestDrawCoversCenterAndLeavesCornersClear(t *testing.T) {
	s := testScene()
	s.Add(newObject("q", quad(0, mgl32.Vec4{1, 0, 0, 1}, true)))
	dst := NewImage(32, 32)
	NewRasterizer(2).Draw(dst, s.View("q"))

	c := dst.Get(16, 16)
	if c[0] < 0.99 || c[1] != 0 || c[3] != 1 {
		t.Errorf("center = %v", c)
	}
	if corner := dst.Get(0, 0); corner != ([4]float32{}) {
		t.Errorf("corner = %v", corner)
	}
}

func TestDrawCullsBackFaces(t *testing.T) {
	s := testScene()
	s.Add(newObject("q", quad(0, mgl32.Vec4{1, 0, 0, 1}, false)))
	dst := NewImage(16, 16)
	NewRasterizer(1).Draw(dst, s.View("q"))
	if c := dst.Get(8, 8); c != ([4]float32{}) {
		t.Errorf("back face drawn: %v", c)
	}
}

func TestDrawDepthOrderIndependent(t *testing.T) {
	for _, nearFirst := range []bool{true, false} {
		s := testScene()
		near := newObject("near", quad(1, mgl32.Vec4{0, 1, 0, 1}, true))
		far := newObject("far", quad(-1, mgl32.Vec4{0, 0, 1, 1}, true))
		if nearFirst {
			s.Add(near)
			s.Add(far)
		} else {
			s.Add(far)
			s.Add(near)
		}
		dst := NewImage(32, 32)
		NewRasterizer(4).Draw(dst, s.View("near", "far"))
		if c := dst.Get(16, 16); c[1] < 0.99 || c[2] != 0 {
			t.Errorf("nearFirst=%v center = %v", nearFirst, c)
		}
	}
}

func TestDrawRespectsView(t *testing.T) {
	s := testScene()
	s.Add(newObject("a", quad(0, mgl32.Vec4{1, 0, 0, 1}, true)))
	dst := NewImage(8, 8)
	NewRasterizer(1).Draw(dst, s.View("b"))
	for i, v := range dst.Pix {
		if v != 0 {
			t.Fatalf("pix %d = %v for empty view", i, v)
		}
	}
}

func TestDrawBehindCameraIsDropped(t *testing.T) {
	s := testScene()
	s.Add(newObject("q", quad(10, mgl32.Vec4{1, 1, 1, 1}, true)))
	dst := NewImage(8, 8)
	NewRasterizer(1).Draw(dst, s.View("q"))
	if c := dst.Get(4, 4); c != ([4]float32{}) {
		t.Errorf("quad behind camera drawn: %v", c)
	}
}

func TestDrawMasksOmittedObjectFromAnyPose(t *testing.T) {
	poses := []struct {
		name     string
		position mgl32.Vec3
		target   mgl32.Vec3
		seesBox  bool
	}{
		{"front", mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, true},
		{"behind", mgl32.Vec3{0, 0, -5}, mgl32.Vec3{}, true},
		{"side", mgl32.Vec3{6, 0.5, 0}, mgl32.Vec3{}, true},
		{"above", mgl32.Vec3{0, 6, 1}, mgl32.Vec3{}, true},
		{"grazing", mgl32.Vec3{-4, 0.2, 3}, mgl32.Vec3{2.5, 0, 0}, true},
		// inside the box: its faces point away and are culled
		{"inside box", mgl32.Vec3{0, 0, 0.2}, mgl32.Vec3{1, 0, -1}, false},
	}

	build := func(pose int, withBox bool) *scene.Scene {
		p := poses[pose]
		cam := &scene.Camera{FOV: 90, Aspect: 1, Near: 0.1, Far: 100, Position: p.position, Target: p.target}
		s := scene.New(cam, scene.HemisphereLight{Sky: mgl32.Vec3{1, 1, 1}, Intensity: 3.14159265})
		if withBox {
			box := &scene.Model{Parts: []scene.Part{{
				Mesh:     scene.NewBox(2, 2, 2),
				Material: scene.Material{BaseColor: mgl32.Vec4{0, 0, 1, 1}},
				Local:    mgl32.Ident4(),
			}}}
			s.Add(newObject("box", box))
		}
		ball := &scene.Model{Parts: []scene.Part{{
			Mesh:     scene.NewSphere(0.5, 16, 8),
			Material: scene.Material{BaseColor: mgl32.Vec4{1, 0, 0, 1}},
			Local:    mgl32.Ident4(),
		}}}
		obj := newObject("ball", ball)
		obj.Position = mgl32.Vec3{2.5, 0, 0}
		s.Add(obj)
		return s
	}

	for i, p := range poses {
		t.Run(p.name, func(t *testing.T) {
			r := NewRasterizer(2)

			masked := NewImage(24, 24)
			r.Draw(masked, build(i, true).View("ball"))
			alone := NewImage(24, 24)
			r.Draw(alone, build(i, false).View("ball"))

			for j := range masked.Pix {
				if masked.Pix[j] != alone.Pix[j] {
					t.Fatalf("pix %d = %v, want %v: omitted box affected the view", j, masked.Pix[j], alone.Pix[j])
				}
			}
			for j := 2; j < len(masked.Pix); j += 4 {
				if masked.Pix[j] != 0 {
					t.Fatalf("blue at %d in a view without the box", j/4)
				}
			}

			full := NewImage(24, 24)
			r.Draw(full, build(i, true).View("ball", "box"))
			var blue bool
			for j := 2; j < len(full.Pix); j += 4 {
				if full.Pix[j] > 0 {
					blue = true
					break
				}
			}
			if blue != p.seesBox {
				t.Errorf("box visible in full view = %v, want %v", blue, p.seesBox)
			}
		})
	}
}
