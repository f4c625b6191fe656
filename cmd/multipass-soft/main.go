// Command multipass-soft runs the pipeline on the CPU. It opens an
// Ebitengine window, or with -headless writes PNG frames and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"multipass/internal/logger"
	"multipass/pkg/assets"
	"multipass/pkg/config"
	"multipass/pkg/engine"
	"multipass/pkg/present"
	"multipass/pkg/present/ebitenview"
	"multipass/pkg/scene"
	"multipass/pkg/software"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	preset := flag.String("preset", "", "Use a built-in configuration instead of -config")
	headless := flag.Bool("headless", false, "Render without a window")
	frames := flag.Uint64("frames", 120, "Frames to render in headless mode")
	every := flag.Uint64("every", 1, "Write every n-th frame in headless mode")
	out := flag.String("out", "frames", "PNG output directory in headless mode")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *preset)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logger.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := assets.NewLoader(cfg.BaseDir, cfg.Assets.MaxTextureSize, logger.Named("assets"))
	loaded, err := loader.Load(ctx, cfg.Assets, cfg.Scene.RequireAssets)
	if err != nil {
		log.Fatalf("Failed to load assets: %v", err)
	}

	sc, err := scene.Build(cfg, loaded, logger.Named("scene"))
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}

	if *headless {
		// no display to pace against
		cfg.Graphics.FrameRate = 0
	}

	dev, err := software.NewDevice(cfg.Graphics.Width, cfg.Graphics.Height, cfg.Graphics.Workers, logger.Named("software"))
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}

	eng, err := engine.NewEngine(cfg, dev, sc, logger.Named("engine"))
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer eng.Close()

	if *headless {
		w, err := present.NewPNGWriter(*out, dev, present.PNGOptions{Limit: *frames, Every: *every}, logger.Named("png"))
		if err != nil {
			log.Fatalf("Failed to create PNG writer: %v", err)
		}
		if err := eng.Run(ctx, w); err != nil {
			logger.Errorf("Render loop stopped: %v", err)
			os.Exit(1)
		}
		logger.Infof("Wrote %d frames to %s", w.Written(), *out)
		return
	}

	if err := ebitenview.Run(ebitenview.NewGame(eng, dev, logger.Named("view")), cfg.Graphics); err != nil {
		logger.Errorf("Window closed with error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(path, preset string) (*config.Config, error) {
	if preset != "" {
		return config.Preset(preset)
	}
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("%v", err)
		return cfg, nil
	}
	return cfg, err
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.LogFile != "" {
		return logger.NewMultiLogger(cfg.LogLevel, cfg.LogFile)
	}
	return logger.NewLogger(cfg.LogLevel), nil
}
