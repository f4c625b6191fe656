package config

import (
	"fmt"
	"sort"
)

// Preset names
const (
	PresetLayered   = "layered"
	PresetPixelated = "pixelated"
)

var presets = map[string]func() *Config{
	PresetLayered:   layeredConfig,
	PresetPixelated: pixelatedConfig,
}

// PresetNames returns the built-in preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of a built-in configuration
func Preset(name string) (*Config, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return build(), nil
}

// DefaultConfig creates the default configuration: three branches over one
// shared scene, each with its own effect chain.
func DefaultConfig() *Config {
	return layeredConfig()
}

func baseConfig() *Config {
	return &Config{
		LogLevel: "info",
		Graphics: GraphicsConfig{
			Width:     960,
			Height:    540,
			FrameRate: 60,
			VSync:     true,
			Title:     "multipass",
		},
		Camera: CameraConfig{
			FOV:      75,
			Near:     0.1,
			Far:      1000,
			Position: [3]float32{0, 0, 5},
		},
		Assets: AssetsConfig{
			Mesh:           "assets/models/sandwich.glb",
			Texture:        "assets/images/checker.png",
			MaxTextureSize: 2048,
		},
		Scene: SceneConfig{
			RequireAssets: true,
			Light: LightConfig{
				Sky:       "#ffffff",
				Ground:    "#080820",
				Intensity: 5,
			},
		},
		Compositor: CompositorConfig{
			Mode: ModeSequentialOver,
		},
		Targets: TargetsConfig{
			Policy: PolicyPersistent,
		},
	}
}

func layeredConfig() *Config {
	c := baseConfig()
	c.Scene.Objects = []ObjectConfig{
		{Name: "sandwich", Kind: KindMesh, Scale: [3]float32{2, 2, 2}, Spin: 0.01},
		{Name: "sphere", Kind: KindSphere, Radius: 1, Color: "#ff0000", Position: [3]float32{1, 1, 3}},
		{Name: "box", Kind: KindBox, Size: [3]float32{9, 6, 2}, Color: "#ffffff", Texture: true},
	}
	c.Branches = []BranchConfig{
		{
			Name:    "glow",
			Visible: []string{"sandwich"},
			Effects: []EffectConfig{
				{Type: "bloom", Params: map[string]interface{}{"strength": 0.1, "radius": 2.0, "threshold": 1.0}},
				{Type: "dotscreen", Params: map[string]interface{}{"scale": 4.0}},
				{Type: "output"},
			},
		},
		{
			Name:    "dots",
			Visible: []string{"sphere"},
			Effects: []EffectConfig{
				{Type: "dotscreen", Params: map[string]interface{}{"scale": 0.2}},
				{Type: "output"},
			},
		},
		{
			Name:    "shift",
			Visible: []string{"box"},
			Effects: []EffectConfig{
				{Type: "rgbshift", Params: map[string]interface{}{"amount": 0.02}},
				{Type: "output"},
			},
		},
	}
	return c
}

// pixelatedConfig is the two-branch variant: the mesh and the textured box
// render without effects and the compositor pixelates the mesh layer.
func pixelatedConfig() *Config {
	c := baseConfig()
	c.Scene.RequireAssets = false
	c.Scene.Objects = []ObjectConfig{
		{Name: "sandwich", Kind: KindMesh, Scale: [3]float32{2, 2, 2}, Spin: 0.01},
		{Name: "box", Kind: KindBox, Size: [3]float32{9, 6, 2}, Color: "#ffffff", Texture: true},
	}
	c.Branches = []BranchConfig{
		{Name: "mesh", Visible: []string{"sandwich"}},
		{Name: "backdrop", Visible: []string{"box"}},
	}
	c.Compositor.Pixelate = 90
	return c
}
