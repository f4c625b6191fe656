// Package assets loads the mesh and texture the scene needs before the
// first frame.
package assets

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"multipass/internal/logger"
	"multipass/internal/util"
	"multipass/pkg/config"
	"multipass/pkg/scene"
)

// Loader resolves asset paths against a base directory and loads them
// concurrently.
type Loader struct {
	baseDir        string
	maxTextureSize int
	logger         *logger.Logger
}

// NewLoader creates a loader. maxTextureSize <= 0 disables downscaling.
func NewLoader(baseDir string, maxTextureSize int, log *logger.Logger) *Loader {
	return &Loader{baseDir: baseDir, maxTextureSize: maxTextureSize, logger: log}
}

// Load reads the configured mesh and texture in parallel. An empty path
// leaves its handle nil. In strict mode the first failure is returned and
// startup should abort; otherwise failures are logged and the handle stays
// nil so the scene builder can omit the objects that need it.
func (l *Loader) Load(ctx context.Context, cfg config.AssetsConfig, strict bool) (*scene.Assets, error) {
	out := &scene.Assets{}
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Mesh != "" {
		path := util.ResolvePath(l.baseDir, cfg.Mesh)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model, err := LoadModel(path, l.maxTextureSize)
			if err != nil {
				return l.fail(strict, "mesh", err)
			}
			l.logger.Infof("Loaded model %s: %d parts", path, len(model.Parts))
			out.Model = model
			return nil
		})
	}

	if cfg.Texture != "" {
		path := util.ResolvePath(l.baseDir, cfg.Texture)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tex, err := LoadTexture(path, l.maxTextureSize)
			if err != nil {
				return l.fail(strict, "texture", err)
			}
			l.logger.Infof("Loaded texture %s: %dx%d", path, tex.Rect.Dx(), tex.Rect.Dy())
			out.Texture = tex
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) fail(strict bool, kind string, err error) error {
	if strict {
		return fmt.Errorf("failed to load %s: %w", kind, err)
	}
	l.logger.Warnf("Failed to load %s, continuing without it: %v", kind, err)
	return nil
}
