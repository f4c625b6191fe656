package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"multipass/internal/logger"
	"multipass/pkg/assets"
	"multipass/pkg/config"
	"multipass/pkg/engine"
	"multipass/pkg/opengl"
	"multipass/pkg/present"
	"multipass/pkg/scene"
)

func init() {
	// GLFW requires the program to be running on the main thread
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	preset := flag.String("preset", "", "Use a built-in configuration instead of -config")
	record := flag.String("record", "", "Also write every frame as PNG into this directory")
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
	logger.Info("Starting multipass...")

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// assets load before the window opens
	loader := assets.NewLoader(cfg.BaseDir, cfg.Assets.MaxTextureSize, logger.Named("assets"))
	loaded, err := loader.Load(ctx, cfg.Assets, cfg.Scene.RequireAssets)
	if err != nil {
		log.Fatalf("Failed to load assets: %v", err)
	}

	sc, err := scene.Build(cfg, loaded, logger.Named("scene"))
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}

	win, err := opengl.NewWindow(cfg.Graphics, logger.Named("window"))
	if err != nil {
		log.Fatalf("Failed to open window: %v", err)
	}
	defer win.Close()

	width, height := win.FramebufferSize()
	dev, err := opengl.NewDevice(width, height, logger.Named("opengl"))
	if err != nil {
		log.Fatalf("Failed to initialize OpenGL device: %v", err)
	}
	defer dev.Close()

	// high-DPI framebuffers are larger than the requested window
	cfg.Graphics.Width, cfg.Graphics.Height = width, height
	sc.Camera.SetAspect(width, height)
	eng, err := engine.NewEngine(cfg, dev, sc, logger.Named("engine"))
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer eng.Close()

	win.OnResize(func(w, h int) {
		if err := eng.Resize(w, h); err != nil {
			logger.Errorf("Resize failed: %v", err)
		}
	})

	var presenter engine.Presenter = win
	if *record != "" {
		presenter, err = present.NewPNGWriter(*record, dev, present.PNGOptions{Next: win}, logger.Named("record"))
		if err != nil {
			log.Fatalf("Failed to start recording: %v", err)
		}
	}

	logger.Info("Engine initialized, starting render loop...")
	if err := eng.Run(ctx, presenter); err != nil {
		logger.Errorf("Render loop stopped: %v", err)
		os.Exit(1)
	}
}

// loadConfig picks the preset when one is named, otherwise the config file.
// A missing file falls back to the defaults.
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
