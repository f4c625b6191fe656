package engine

import (
	"context"
	"fmt"
	"time"

	"multipass/internal/logger"
	"multipass/internal/util"
	"multipass/pkg/compositor"
	"multipass/pkg/config"
	"multipass/pkg/effects"
	"multipass/pkg/scene"
)

// statsInterval is how many frames pass between frame time reports
const statsInterval = 300

// Engine drives the per-frame pipeline: animate, render every branch into
// its targets, then composite onto the default framebuffer.
type Engine struct {
	config     *config.Config
	logger     *logger.Logger
	device     Device
	scene      *scene.Scene
	branches   []*Branch
	pool       *TargetPool
	compositor *compositor.Compositor
	uniforms   Uniforms
	boundGen   uint64
	frame      uint64
	elapsed    float64
	isRunning  bool
	lastUpdate time.Time
	frameRate  int
	frameTimes *util.RollingAverage
}

// NewEngine wires branches, targets and the compositor over a built scene.
// Every error here is a setup error; no frame has been drawn yet.
func NewEngine(cfg *config.Config, dev Device, sc *scene.Scene, log *logger.Logger) (*Engine, error) {
	comp, err := compositor.FromConfig(cfg.Compositor, len(cfg.Branches))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize compositor: %w", err)
	}

	branches := make([]*Branch, 0, len(cfg.Branches))
	for i, bc := range cfg.Branches {
		chain, err := effects.Build(bc.Effects)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize branch %d (%s): %w", i, bc.Name, err)
		}
		name := bc.Name
		if name == "" {
			name = fmt.Sprintf("branch%d", i)
		}
		branches = append(branches, NewBranch(name, sc.View(bc.Visible...), chain))
	}

	pool, err := NewTargetPool(dev, len(branches), cfg.Graphics.Width, cfg.Graphics.Height, cfg.Targets.Policy, log.Named("targets"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize render targets: %w", err)
	}

	e := &Engine{
		config:     cfg,
		logger:     log,
		device:     dev,
		scene:      sc,
		branches:   branches,
		pool:       pool,
		compositor: comp,
		frameRate:  cfg.Graphics.FrameRate,
		frameTimes: util.NewRollingAverage(statsInterval),
	}

	log.Infof("Pipeline ready: %d branches, %s compositing, %s targets", len(branches), comp.Mode(), pool.Policy())
	for _, b := range branches {
		var names []string
		for _, fx := range b.Effects {
			names = append(names, fx.Name())
		}
		log.Debugf("Branch %s renders %v through %v", b.Name, b.View.Names(), names)
	}
	return e, nil
}

// Frame runs one iteration of the pipeline. dt is the time since the
// previous frame in seconds.
func (e *Engine) Frame(dt float64) error {
	e.elapsed += dt
	e.uniforms.Time = float32(e.elapsed)
	e.scene.Animate()

	lease, err := e.pool.Acquire()
	if err != nil {
		return fmt.Errorf("frame %d: %w", e.frame, err)
	}
	defer lease.Release()

	if gen := lease.Generation(); gen != e.boundGen {
		if err := e.uniforms.Bind(lease.Outputs(), e.compositor.Inputs()); err != nil {
			return err
		}
		e.boundGen = gen
	}

	for i, b := range e.branches {
		if err := b.Render(e.device, lease.Pair(i)); err != nil {
			return fmt.Errorf("frame %d: %w", e.frame, err)
		}
	}

	if err := e.device.Composite(e.compositor, e.uniforms); err != nil {
		return fmt.Errorf("frame %d: composite: %w", e.frame, err)
	}

	e.frame++
	return nil
}

// Run starts the main loop and returns when the context is done, the
// presenter asks to close, or a frame fails.
func (e *Engine) Run(ctx context.Context, presenter Presenter) error {
	e.isRunning = true
	e.lastUpdate = time.Now()
	defer func() { e.isRunning = false }()

	for e.isRunning && !presenter.ShouldClose() {
		select {
		case <-ctx.Done():
			e.logger.Info("Context cancelled, stopping")
			return nil
		default:
		}

		currentTime := time.Now()
		deltaTime := currentTime.Sub(e.lastUpdate).Seconds()
		e.lastUpdate = currentTime

		if err := e.Frame(deltaTime); err != nil {
			return err
		}
		if err := presenter.Present(e.frame); err != nil {
			return fmt.Errorf("present frame %d: %w", e.frame, err)
		}

		frameTime := time.Since(currentTime)
		e.frameTimes.Add(frameTime.Seconds())
		if e.frame%statsInterval == 0 {
			e.logger.Debugf("Frame %d: mean %.2fms, median %.2fms",
				e.frame, e.frameTimes.Mean()*1000, e.frameTimes.Median()*1000)
		}

		// Cap the frame rate
		if e.frameRate > 0 {
			targetFrameTime := time.Second / time.Duration(e.frameRate)
			if frameTime < targetFrameTime {
				time.Sleep(targetFrameTime - frameTime)
			}
		}
	}
	return nil
}

// Stop makes Run return after the current frame
func (e *Engine) Stop() {
	e.isRunning = false
}

// Resize reallocates targets and updates the camera for a new viewport
func (e *Engine) Resize(width, height int) error {
	if w, h := e.pool.Size(); w == width && h == height {
		return nil
	}
	if err := e.pool.Resize(width, height); err != nil {
		return fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}
	if err := e.device.Resize(width, height); err != nil {
		return fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}
	e.scene.Camera.SetAspect(width, height)
	e.logger.Infof("Viewport resized to %dx%d", width, height)
	return nil
}

// Branches returns the branches in compositor input order
func (e *Engine) Branches() []*Branch {
	return e.branches
}

// Branch looks up a branch by name
func (e *Engine) Branch(name string) (*Branch, bool) {
	for _, b := range e.branches {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Uniforms returns the compositor binding of the last frame
func (e *Engine) Uniforms() Uniforms {
	return e.uniforms
}

// Targets returns the target pool
func (e *Engine) Targets() *TargetPool {
	return e.pool
}

// FrameCount returns the number of frames completed
func (e *Engine) FrameCount() uint64 {
	return e.frame
}

// Scene returns the shared scene
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

// Close releases all targets
func (e *Engine) Close() {
	e.logger.Info("Shutting down engine...")
	e.pool.Close()
}
