package scene

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"multipass/internal/util"
)

// Object is a named instance of a model placed in the scene
type Object struct {
	Name     string
	Model    *Model
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler XYZ, radians
	Scale    mgl32.Vec3
	Spin     float32 // radians per frame around Y

	// yaw accumulates spin separately from Rotation so that repeated small
	// increments stay exact enough to return to the start after a full turn.
	yaw float64
}

// Transform returns the object's world matrix: T * Rx * Ry * Rz * S
func (o *Object) Transform() mgl32.Mat4 {
	ry := float32(math.Mod(float64(o.Rotation[1])+o.yaw, 2*math.Pi))
	return mgl32.Translate3D(o.Position[0], o.Position[1], o.Position[2]).
		Mul4(mgl32.HomogRotate3DX(o.Rotation[0])).
		Mul4(mgl32.HomogRotate3DY(ry)).
		Mul4(mgl32.HomogRotate3DZ(o.Rotation[2])).
		Mul4(mgl32.Scale3D(o.Scale[0], o.Scale[1], o.Scale[2]))
}

// RotateY adds delta radians to the Y rotation, wrapped into [0, 2π)
func (o *Object) RotateY(delta float64) {
	o.yaw = util.WrapAngle(o.yaw + delta)
}

// Yaw returns the accumulated Y rotation in [0, 2π)
func (o *Object) Yaw() float64 {
	return o.yaw
}

// Camera is a perspective camera
type Camera struct {
	FOV      float32 // vertical, degrees
	Aspect   float32
	Near     float32
	Far      float32
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

// View returns the world-to-camera matrix
func (c *Camera) View() mgl32.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.Target, up)
}

// Projection returns the perspective projection matrix
func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// SetAspect updates the aspect ratio after a viewport change
func (c *Camera) SetAspect(width, height int) {
	if height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

// HemisphereLight lights surfaces with a blend of a sky and a ground color
// chosen by how much the normal faces up.
type HemisphereLight struct {
	Sky       mgl32.Vec3
	Ground    mgl32.Vec3
	Intensity float32
}

// Irradiance returns the light reaching a surface with world normal n,
// already divided by π for a Lambertian surface.
func (l HemisphereLight) Irradiance(n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() > 0 {
		n = n.Normalize()
	}
	w := 0.5*n[1] + 0.5
	c := l.Ground.Mul(1 - w).Add(l.Sky.Mul(w))
	return c.Mul(l.Intensity / math.Pi)
}

// Scene holds every object, the light and the camera. Branches never own
// objects: they render a View over the shared scene.
type Scene struct {
	Camera  *Camera
	Light   HemisphereLight
	objects []*Object
	index   map[string]*Object
}

// New creates an empty scene
func New(camera *Camera, light HemisphereLight) *Scene {
	return &Scene{
		Camera: camera,
		Light:  light,
		index:  make(map[string]*Object),
	}
}

// Add inserts an object. An object with the same name is replaced.
func (s *Scene) Add(o *Object) {
	if old, ok := s.index[o.Name]; ok {
		i := slices.Index(s.objects, old)
		s.objects[i] = o
	} else {
		s.objects = append(s.objects, o)
	}
	s.index[o.Name] = o
}

// Object looks up an object by name
func (s *Scene) Object(name string) (*Object, bool) {
	o, ok := s.index[name]
	return o, ok
}

// Objects returns all objects in insertion order
func (s *Scene) Objects() []*Object {
	return s.objects
}

// Animate advances every spinning object by one frame
func (s *Scene) Animate() {
	for _, o := range s.objects {
		if o.Spin != 0 {
			o.RotateY(float64(o.Spin))
		}
	}
}

// View selects the objects a branch renders. Names that are not in the
// scene are ignored, so a view over an omitted object renders nothing for it.
func (s *Scene) View(names ...string) *View {
	return &View{scene: s, names: slices.Clone(names)}
}

// View is a per-branch visibility selection over a shared scene
type View struct {
	scene *Scene
	names []string
}

// Names returns the selected object names
func (v *View) Names() []string {
	return v.names
}

// Contains reports whether the named object is selected
func (v *View) Contains(name string) bool {
	return slices.Contains(v.names, name)
}

// Objects returns the selected objects present in the scene, in scene order
func (v *View) Objects() []*Object {
	var out []*Object
	for _, o := range v.scene.objects {
		if v.Contains(o.Name) {
			out = append(out, o)
		}
	}
	return out
}

// Camera returns the shared camera
func (v *View) Camera() *Camera {
	return v.scene.Camera
}

// Light returns the shared light
func (v *View) Light() HemisphereLight {
	return v.scene.Light
}
