package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Blend modes understood by the compositor
const (
	ModeSequentialOver   = "sequential-over"
	ModeBaseRelativeOver = "base-relative-over"
)

// Target allocation policies
const (
	PolicyPersistent = "persistent"
	PolicyPerFrame   = "per-frame"
)

// Object kinds understood by the scene builder
const (
	KindMesh   = "mesh"
	KindBox    = "box"
	KindSphere = "sphere"
)

// EffectTypes lists the image-space effects a branch may chain.
var EffectTypes = []string{"bloom", "dotscreen", "rgbshift", "pixelate", "output"}

// Config represents the main configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	LogFile    string           `yaml:"log_file"` // also log to this file when set
	Graphics   GraphicsConfig   `yaml:"graphics"`
	Camera     CameraConfig     `yaml:"camera"`
	Assets     AssetsConfig     `yaml:"assets"`
	Scene      SceneConfig      `yaml:"scene"`
	Branches   []BranchConfig   `yaml:"branches"`
	Compositor CompositorConfig `yaml:"compositor"`
	Targets    TargetsConfig    `yaml:"targets"`

	// BaseDir is the directory relative asset paths are resolved against.
	// LoadConfig sets it to the config file's directory.
	BaseDir string `yaml:"-"`
}

// GraphicsConfig contains viewport and frame pacing configuration
type GraphicsConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	FrameRate int    `yaml:"framerate"` // 0 = uncapped
	VSync     bool   `yaml:"vsync"`
	Title     string `yaml:"title"`
	Workers   int    `yaml:"workers"` // software device row workers; 0 = GOMAXPROCS
}

// CameraConfig describes the shared perspective camera
type CameraConfig struct {
	FOV      float32    `yaml:"fov"` // vertical, degrees
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Position [3]float32 `yaml:"position"`
	Target   [3]float32 `yaml:"target"`
}

// AssetsConfig names the files loaded before the first frame
type AssetsConfig struct {
	Mesh           string `yaml:"mesh"`
	Texture        string `yaml:"texture"`
	MaxTextureSize int    `yaml:"max_texture_size"` // 0 = no limit
}

// SceneConfig describes the shared scene
type SceneConfig struct {
	RequireAssets bool           `yaml:"require_assets"`
	Light         LightConfig    `yaml:"light"`
	Objects       []ObjectConfig `yaml:"objects"`
}

// LightConfig describes the hemisphere light
type LightConfig struct {
	Sky       string  `yaml:"sky"`
	Ground    string  `yaml:"ground"`
	Intensity float32 `yaml:"intensity"`
}

// ObjectConfig describes one renderable object
type ObjectConfig struct {
	Name     string     `yaml:"name"`
	Kind     string     `yaml:"kind"` // mesh, box, sphere
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"` // Euler XYZ, radians
	Scale    [3]float32 `yaml:"scale"`    // zero means 1,1,1
	Size     [3]float32 `yaml:"size"`     // box width, height, depth
	Radius   float32    `yaml:"radius"`   // sphere
	Color    string     `yaml:"color"`
	Texture  bool       `yaml:"texture"` // use the loaded image as base color map
	Spin     float32    `yaml:"spin"`    // radians per frame around Y
}

// BranchConfig describes one effect branch
type BranchConfig struct {
	Name    string         `yaml:"name"`
	Visible []string       `yaml:"visible"`
	Effects []EffectConfig `yaml:"effects"`
}

// EffectConfig describes one image-space effect. Every key other than
// type and enabled is an effect parameter.
type EffectConfig struct {
	Type    string                 `yaml:"type"`
	Enabled *bool                  `yaml:"enabled,omitempty"`
	Params  map[string]interface{} `yaml:",inline"`
}

// IsEnabled reports whether the effect runs; effects are enabled unless
// explicitly disabled.
func (e EffectConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// CompositorConfig configures the final blend pass
type CompositorConfig struct {
	Mode     string  `yaml:"mode"`
	Pixelate float32 `yaml:"pixelate"` // grid for input A, 0 = off
	Inputs   int     `yaml:"inputs"`   // 0 = one per branch
}

// TargetsConfig configures offscreen target allocation
type TargetsConfig struct {
	Policy string `yaml:"policy"`
}

// Aspect returns the viewport aspect ratio
func (g GraphicsConfig) Aspect() float32 {
	if g.Height <= 0 {
		return 1
	}
	return float32(g.Width) / float32(g.Height)
}

// ObjectNames returns the names of all declared objects in order
func (c *Config) ObjectNames() []string {
	names := make([]string, 0, len(c.Scene.Objects))
	for _, o := range c.Scene.Objects {
		names = append(names, o.Name)
	}
	return names
}

// InputCount returns the number of compositor inputs the config wires.
func (c *Config) InputCount() int {
	if c.Compositor.Inputs > 0 {
		return c.Compositor.Inputs
	}
	return len(c.Branches)
}

// LoadConfig loads the configuration from a file, overlaying it on the
// defaults. On error the defaults are returned alongside the error.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return config, fmt.Errorf("config file not found, using defaults: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("error parsing config: %w", err)
	}

	if abs, err := filepath.Abs(filepath.Dir(filePath)); err == nil {
		config.BaseDir = abs
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error serializing config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
