// Package ebitenview shows the software device's frames in an Ebitengine
// window.
package ebitenview

import (
	"errors"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"multipass/internal/logger"
	"multipass/pkg/config"
	"multipass/pkg/engine"
	"multipass/pkg/software"
)

// Game adapts the engine to ebiten.Game: Update runs one pipeline frame,
// Draw uploads the composited pixels and Layout drives live resize.
type Game struct {
	engine     *engine.Engine
	device     *software.Device
	logger     *logger.Logger
	lastUpdate time.Time
	width      int
	height     int
}

// NewGame creates the adapter for an engine rendering on dev
func NewGame(e *engine.Engine, dev *software.Device, log *logger.Logger) *Game {
	s := dev.Screen()
	return &Game{engine: e, device: dev, logger: log, width: s.Width, height: s.Height}
}

// Update implements ebiten.Game
func (g *Game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	now := time.Now()
	dt := 0.0
	if !g.lastUpdate.IsZero() {
		dt = now.Sub(g.lastUpdate).Seconds()
	}
	g.lastUpdate = now

	return g.engine.Frame(dt)
}

// Draw implements ebiten.Game
func (g *Game) Draw(screen *ebiten.Image) {
	img, err := g.device.Snapshot()
	if err != nil {
		g.logger.Errorf("Snapshot failed: %v", err)
		return
	}
	if img.Rect.Dx() != screen.Bounds().Dx() || img.Rect.Dy() != screen.Bounds().Dy() {
		// resized since the last frame
		return
	}
	screen.WritePixels(img.Pix)
}

// Layout implements ebiten.Game. The logical screen always matches the
// window so frames are rendered at native size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth <= 0 || outsideHeight <= 0 {
		return g.width, g.height
	}
	if outsideWidth != g.width || outsideHeight != g.height {
		if err := g.engine.Resize(outsideWidth, outsideHeight); err != nil {
			g.logger.Errorf("Resize failed: %v", err)
			return g.width, g.height
		}
		g.width, g.height = outsideWidth, outsideHeight
	}
	return g.width, g.height
}

// Run opens the window and blocks until it is closed
func Run(g *Game, cfg config.GraphicsConfig) error {
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(cfg.VSync)
	if cfg.FrameRate > 0 {
		ebiten.SetTPS(cfg.FrameRate)
	} else {
		ebiten.SetTPS(ebiten.SyncWithFPS)
	}

	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}
