package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"multipass/pkg/scene"
)

// ErrUnsupportedModel is returned for files that are not glTF 2.0
var ErrUnsupportedModel = errors.New("unsupported model format")

// maxNodeDepth bounds the node walk so a cyclic hierarchy cannot recurse forever
const maxNodeDepth = 64

// LoadModel reads a .gltf or .glb file into a Model. Each triangle
// primitive reachable from the default scene becomes one Part carrying its
// node's world transform. Missing normals are generated; missing UVs are
// left empty. Base color textures are decoded and bounded by maxTextureSize.
func LoadModel(path string, maxTextureSize int) (*scene.Model, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".gltf" && ext != ".glb" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, ext)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", path, err)
	}

	r := &modelReader{
		doc:      doc,
		dir:      filepath.Dir(path),
		maxSize:  maxTextureSize,
		textures: make(map[int]*image.RGBA),
	}
	model := &scene.Model{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	for _, root := range r.roots() {
		if err := r.visit(model, root, mgl32.Ident4(), 0); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
	}
	if len(model.Parts) == 0 {
		return nil, fmt.Errorf("model %s has no triangle primitives", path)
	}
	return model, nil
}

type modelReader struct {
	doc      *gltf.Document
	dir      string
	maxSize  int
	textures map[int]*image.RGBA
}

// roots returns the root nodes of the default scene, or of the first scene
// when none is marked default.
func (r *modelReader) roots() []int {
	if len(r.doc.Scenes) == 0 {
		// no scenes: treat every node as a root
		roots := make([]int, len(r.doc.Nodes))
		for i := range roots {
			roots[i] = i
		}
		return roots
	}
	idx := 0
	if r.doc.Scene != nil && *r.doc.Scene < len(r.doc.Scenes) {
		idx = *r.doc.Scene
	}
	return r.doc.Scenes[idx].Nodes
}

func (r *modelReader) visit(model *scene.Model, idx int, parent mgl32.Mat4, depth int) error {
	if depth > maxNodeDepth {
		return fmt.Errorf("node hierarchy deeper than %d", maxNodeDepth)
	}
	if idx < 0 || idx >= len(r.doc.Nodes) {
		return fmt.Errorf("node index %d out of range", idx)
	}
	node := r.doc.Nodes[idx]
	world := parent.Mul4(nodeMatrix(node))

	if node.Mesh != nil {
		if *node.Mesh >= len(r.doc.Meshes) {
			return fmt.Errorf("node %d: mesh index %d out of range", idx, *node.Mesh)
		}
		mesh := r.doc.Meshes[*node.Mesh]
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				// points and lines have no surface to shade
				continue
			}
			m, err := r.primitive(prim)
			if err != nil {
				return fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err)
			}
			mat, err := r.material(prim.Material)
			if err != nil {
				return fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err)
			}
			model.Parts = append(model.Parts, scene.Part{Mesh: m, Material: mat, Local: world})
		}
	}

	for _, child := range node.Children {
		if err := r.visit(model, child, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// nodeMatrix returns the node's local transform. A node carries either a
// matrix or TRS properties.
func nodeMatrix(n *gltf.Node) mgl32.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		var out mgl32.Mat4
		for i, v := range m {
			out[i] = float32(v)
		}
		return out
	}
	t := n.TranslationOrDefault()
	q := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl32.Quat{W: float32(q[3]), V: mgl32.Vec3{float32(q[0]), float32(q[1]), float32(q[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

func (r *modelReader) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(r.doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", idx)
	}
	return r.doc.Accessors[idx], nil
}

func (r *modelReader) primitive(prim *gltf.Primitive) (*scene.Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("missing POSITION attribute")
	}
	acc, err := r.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(r.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	m := &scene.Mesh{Positions: make([]mgl32.Vec3, len(positions))}
	for i, p := range positions {
		m.Positions[i] = mgl32.Vec3(p)
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acc, err := r.accessor(idx)
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(r.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
		m.Normals = make([]mgl32.Vec3, len(normals))
		for i, n := range normals {
			m.Normals[i] = mgl32.Vec3(n)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := r.accessor(idx)
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(r.doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("read texture coordinates: %w", err)
		}
		m.UVs = make([]mgl32.Vec2, len(uvs))
		for i, uv := range uvs {
			m.UVs[i] = mgl32.Vec2(uv)
		}
	}

	if prim.Indices != nil {
		acc, err := r.accessor(*prim.Indices)
		if err != nil {
			return nil, err
		}
		if m.Indices, err = modeler.ReadIndices(r.doc, acc, nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, len(m.Positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Normals) == 0 {
		m.ComputeNormals()
	}
	return m, nil
}

func (r *modelReader) material(idx *int) (scene.Material, error) {
	mat := scene.Material{BaseColor: mgl32.Vec4{1, 1, 1, 1}}
	if idx == nil {
		return mat, nil
	}
	if *idx < 0 || *idx >= len(r.doc.Materials) {
		return mat, fmt.Errorf("material index %d out of range", *idx)
	}
	pbr := r.doc.Materials[*idx].PBRMetallicRoughness
	if pbr == nil {
		return mat, nil
	}
	if f := pbr.BaseColorFactor; f != nil {
		mat.BaseColor = mgl32.Vec4{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
	}
	if pbr.BaseColorTexture != nil {
		tex, err := r.texture(pbr.BaseColorTexture.Index)
		if err != nil {
			return mat, err
		}
		mat.Texture = tex
	}
	return mat, nil
}

// texture decodes a texture's source image once and shares it between
// primitives.
func (r *modelReader) texture(idx int) (*image.RGBA, error) {
	if tex, ok := r.textures[idx]; ok {
		return tex, nil
	}
	if idx < 0 || idx >= len(r.doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", idx)
	}
	src := r.doc.Textures[idx].Source
	if src == nil || *src >= len(r.doc.Images) {
		return nil, fmt.Errorf("texture %d has no image source", idx)
	}

	data, err := r.imageData(r.doc.Images[*src])
	if err != nil {
		return nil, fmt.Errorf("texture %d: %w", idx, err)
	}
	tex, err := DecodeTexture(bytes.NewReader(data), r.maxSize)
	if err != nil {
		return nil, fmt.Errorf("texture %d: %w", idx, err)
	}
	r.textures[idx] = tex
	return tex, nil
}

func (r *modelReader) imageData(img *gltf.Image) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		if *img.BufferView >= len(r.doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		bv := r.doc.BufferViews[*img.BufferView]
		if bv.Buffer >= len(r.doc.Buffers) {
			return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
		}
		data := r.doc.Buffers[bv.Buffer].Data
		end := bv.ByteOffset + bv.ByteLength
		if end > len(data) {
			return nil, fmt.Errorf("buffer view %d exceeds buffer length", *img.BufferView)
		}
		return data[bv.ByteOffset:end], nil
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "":
		return os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(img.URI)))
	default:
		return nil, fmt.Errorf("image has no data")
	}
}
