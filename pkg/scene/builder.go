package scene

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"multipass/internal/logger"
	"multipass/internal/util"
	"multipass/pkg/config"
)

// ErrMissingAsset is returned by Build when require_assets is set and an
// object's mesh or texture was not loaded.
var ErrMissingAsset = errors.New("missing asset")

const (
	sphereWidthSegments  = 32
	sphereHeightSegments = 16
)

// Assets are the loaded handles the builder attaches to objects. Either may
// be nil when loading was skipped or failed in lenient mode.
type Assets struct {
	Model   *Model
	Texture *image.RGBA
}

// Build creates the shared scene from configuration and loaded assets.
func Build(cfg *config.Config, assets *Assets, log *logger.Logger) (*Scene, error) {
	if assets == nil {
		assets = &Assets{}
	}

	cam := &Camera{
		FOV:      cfg.Camera.FOV,
		Aspect:   cfg.Graphics.Aspect(),
		Near:     cfg.Camera.Near,
		Far:      cfg.Camera.Far,
		Position: cfg.Camera.Position,
		Target:   cfg.Camera.Target,
		Up:       mgl32.Vec3{0, 1, 0},
	}

	sky, err := parseColor(cfg.Scene.Light.Sky, "#ffffff")
	if err != nil {
		return nil, fmt.Errorf("light sky: %w", err)
	}
	ground, err := parseColor(cfg.Scene.Light.Ground, "#000000")
	if err != nil {
		return nil, fmt.Errorf("light ground: %w", err)
	}
	light := HemisphereLight{
		Sky:       sky.Vec3(),
		Ground:    ground.Vec3(),
		Intensity: cfg.Scene.Light.Intensity,
	}

	s := New(cam, light)
	strict := cfg.Scene.RequireAssets

	for _, oc := range cfg.Scene.Objects {
		color, err := parseColor(oc.Color, "#ffffff")
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", oc.Name, err)
		}

		var model *Model
		switch oc.Kind {
		case config.KindMesh:
			if assets.Model == nil {
				if strict {
					return nil, fmt.Errorf("object %s: %w: mesh %q", oc.Name, ErrMissingAsset, cfg.Assets.Mesh)
				}
				log.Warnf("Mesh not loaded, omitting object %s", oc.Name)
				continue
			}
			model = assets.Model
		case config.KindBox:
			model = &Model{Name: oc.Name, Parts: []Part{{
				Mesh:     NewBox(oc.Size[0], oc.Size[1], oc.Size[2]),
				Material: Material{BaseColor: color},
				Local:    mgl32.Ident4(),
			}}}
		case config.KindSphere:
			model = &Model{Name: oc.Name, Parts: []Part{{
				Mesh:     NewSphere(oc.Radius, sphereWidthSegments, sphereHeightSegments),
				Material: Material{BaseColor: color},
				Local:    mgl32.Ident4(),
			}}}
		default:
			return nil, fmt.Errorf("object %s: unknown kind %q", oc.Name, oc.Kind)
		}

		if oc.Texture {
			if assets.Texture == nil {
				if strict {
					return nil, fmt.Errorf("object %s: %w: texture %q", oc.Name, ErrMissingAsset, cfg.Assets.Texture)
				}
				log.Warnf("Texture not loaded, omitting object %s", oc.Name)
				continue
			}
			// the loaded model is shared between objects; texture a copy
			model = model.withTexture(assets.Texture)
		}

		scale := mgl32.Vec3(oc.Scale)
		if scale == (mgl32.Vec3{}) {
			scale = mgl32.Vec3{1, 1, 1}
		}

		s.Add(&Object{
			Name:     oc.Name,
			Model:    model,
			Position: oc.Position,
			Rotation: oc.Rotation,
			Scale:    scale,
			Spin:     oc.Spin,
		})
		log.Debugf("Added %s object %s", oc.Kind, oc.Name)
	}

	log.Infof("Scene built with %d of %d objects", len(s.Objects()), len(cfg.Scene.Objects))
	return s, nil
}

func parseColor(s, fallback string) (mgl32.Vec4, error) {
	if s == "" {
		s = fallback
	}
	c, err := util.ParseHexColor(s)
	if err != nil {
		return mgl32.Vec4{}, err
	}
	return mgl32.Vec4(c), nil
}
