package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			c, err := Preset(name)
			if err != nil {
				t.Fatalf("Preset(%q): %v", name, err)
			}
			if err := c.Validate(); err != nil {
				t.Fatalf("preset %q invalid: %v", name, err)
			}
			if c.InputCount() != len(c.Branches) {
				t.Errorf("input count %d != branches %d", c.InputCount(), len(c.Branches))
			}
		})
	}
}

func TestPresetUnknown(t *testing.T) {
	if _, err := Preset("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestPresetsAreIndependentCopies(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	a.Branches[0].Effects[0].Params["strength"] = 9.0
	if b.Branches[0].Effects[0].Params["strength"] == 9.0 {
		t.Fatal("presets share parameter maps")
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
graphics:
  width: 320
  height: 200
compositor:
  mode: base-relative-over
branches:
  - name: a
    visible: [sandwich]
    effects:
      - type: dotscreen
        scale: 2
        enabled: false
  - name: b
    visible: [box]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if c.Graphics.Width != 320 || c.Graphics.Height != 200 {
		t.Errorf("viewport = %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.FrameRate != 60 {
		t.Errorf("framerate default lost: %d", c.Graphics.FrameRate)
	}
	if c.Compositor.Mode != ModeBaseRelativeOver {
		t.Errorf("mode = %q", c.Compositor.Mode)
	}
	if len(c.Branches) != 2 {
		t.Fatalf("branches = %d, want 2", len(c.Branches))
	}
	fx := c.Branches[0].Effects[0]
	if fx.Type != "dotscreen" || fx.IsEnabled() {
		t.Errorf("effect = %+v enabled=%v", fx, fx.IsEnabled())
	}
	if v, ok := fx.Params["scale"]; !ok || v != 2 {
		t.Errorf("scale param = %v (%T)", v, v)
	}
	if _, ok := fx.Params["enabled"]; ok {
		t.Error("enabled leaked into params")
	}
	if c.BaseDir == "" {
		t.Error("BaseDir not set")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if c == nil || len(c.Branches) != 3 {
		t.Fatal("defaults not returned")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	orig := DefaultConfig()
	if err := SaveConfig(orig, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(got.Branches) != len(orig.Branches) {
		t.Fatalf("branches = %d", len(got.Branches))
	}
	if got.Branches[2].Effects[0].Type != "rgbshift" {
		t.Errorf("effect type = %q", got.Branches[2].Effects[0].Type)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("round-tripped config invalid: %v", err)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	c := DefaultConfig()
	c.Graphics.Width = 0
	c.Compositor.Mode = "multiply"
	c.Targets.Policy = "sometimes"
	c.Branches[0].Visible = []string{"ghost"}
	c.Branches[1].Effects = append(c.Branches[1].Effects, EffectConfig{Type: "sepia"})

	err := c.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error %v does not wrap ErrInvalid", err)
	}
	for _, want := range []string{"viewport", "multiply", "sometimes", "ghost", "sepia"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q: %v", want, err)
		}
	}
}

func TestValidateInputMismatch(t *testing.T) {
	c := DefaultConfig()
	c.Compositor.Inputs = 2
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "2 inputs wired but 3 branches") {
		t.Fatalf("expected input mismatch, got %v", err)
	}

	c = DefaultConfig()
	c.Branches = c.Branches[:1]
	if err := c.Validate(); err == nil {
		t.Fatal("single branch accepted")
	}
}

func TestValidateObjects(t *testing.T) {
	tests := []struct {
		name string
		obj  ObjectConfig
		want string
	}{
		{"box size", ObjectConfig{Name: "b", Kind: KindBox}, "box size"},
		{"sphere radius", ObjectConfig{Name: "s", Kind: KindSphere}, "sphere radius"},
		{"kind", ObjectConfig{Name: "k", Kind: "torus"}, "unknown kind"},
		{"name", ObjectConfig{Kind: KindMesh}, "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Scene.Objects = append(c.Scene.Objects, tt.obj)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAspect(t *testing.T) {
	g := GraphicsConfig{Width: 960, Height: 540}
	if got := g.Aspect(); got < 1.777 || got > 1.778 {
		t.Errorf("aspect = %v", got)
	}
	if (GraphicsConfig{}).Aspect() != 1 {
		t.Error("zero height should give aspect 1")
	}
}

func TestShippedConfigFindsSampleAssets(t *testing.T) {
	c, err := LoadConfig(filepath.Join("..", "..", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if !c.Scene.RequireAssets {
		t.Error("shipped config should require its assets")
	}
	for _, p := range []string{c.Assets.Mesh, c.Assets.Texture} {
		if _, err := os.Stat(filepath.Join(c.BaseDir, p)); err != nil {
			t.Errorf("asset %s: %v", p, err)
		}
	}
}
