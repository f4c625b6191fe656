package effects

import (
	"math"
	"strings"
	"testing"

	"multipass/pkg/config"
	"multipass/pkg/raster"
)

func solid(w, h int, c [4]float32) *raster.Image {
	m := raster.NewImage(w, h)
	m.Fill(c)
	return m
}

func run(fx Effect, src *raster.Image) *raster.Image {
	dst := raster.NewImage(src.Width, src.Height)
	fx.Render(Pass{Src: src, Dst: dst, Workers: 2})
	return dst
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestNewDefaults(t *testing.T) {
	fx, err := New(config.EffectConfig{Type: "dotscreen"})
	if err != nil {
		t.Fatal(err)
	}
	ds := fx.(*DotScreen)
	if ds.Center != [2]float32{0.5, 0.5} || ds.Angle != 1.57 || ds.Scale != 1 || ds.Size != [2]float32{256, 256} {
		t.Errorf("dotscreen defaults = %+v", ds)
	}

	fx, err = New(config.EffectConfig{Type: "rgbshift"})
	if err != nil {
		t.Fatal(err)
	}
	if rs := fx.(*RGBShift); rs.Amount != 0.005 || rs.Angle != 0 {
		t.Errorf("rgbshift defaults = %+v", rs)
	}
}

func TestNewParams(t *testing.T) {
	disabled := false
	fx, err := New(config.EffectConfig{
		Type:    "bloom",
		Enabled: &disabled,
		Params:  map[string]interface{}{"strength": 0.1, "radius": 2, "threshold": 1.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	b := fx.(*Bloom)
	if !near(b.Strength, 0.1) || b.Radius != 2 || b.Threshold != 1 {
		t.Errorf("bloom = %+v", b)
	}
	if b.Enabled() {
		t.Error("enabled: false ignored")
	}

	fx, err = New(config.EffectConfig{Type: "dotscreen", Params: map[string]interface{}{"center": []interface{}{0, 1.5}}})
	if err != nil {
		t.Fatal(err)
	}
	if c := fx.(*DotScreen).Center; c != [2]float32{0, 1.5} {
		t.Errorf("center = %v", c)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EffectConfig
		want string
	}{
		{"type", config.EffectConfig{Type: "sepia"}, "unknown effect type"},
		{"param", config.EffectConfig{Type: "rgbshift", Params: map[string]interface{}{"amout": 1}}, `unknown parameter "amout"`},
		{"number", config.EffectConfig{Type: "pixelate", Params: map[string]interface{}{"grid": "big"}}, "not a number"},
		{"pair", config.EffectConfig{Type: "dotscreen", Params: map[string]interface{}{"size": 3}}, "not a pair"},
		{"zero grid", config.EffectConfig{Type: "pixelate", Params: map[string]interface{}{"grid": 0}}, "grid: 0 must be positive"},
		{"negative grid", config.EffectConfig{Type: "pixelate", Params: map[string]interface{}{"grid": -4.5}}, "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildKeepsOrder(t *testing.T) {
	chain, err := Build(config.DefaultConfig().Branches[0].Effects)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fx := range chain {
		names = append(names, fx.Name())
	}
	if strings.Join(names, ",") != "bloom,dotscreen,output" {
		t.Errorf("chain = %v", names)
	}
}

func TestOutputEncodesSRGB(t *testing.T) {
	dst := run(&Output{}, solid(2, 2, [4]float32{0.5, 0, 1, 0.25}))
	c := dst.Get(1, 1)
	if !near(c[0], 0.7354) || c[1] != 0 || !near(c[2], 1) || c[3] != 0.25 {
		t.Errorf("output = %v", c)
	}
	if got := LinearToSRGB(0.002); !near(got, 0.002*12.92) {
		t.Errorf("linear segment = %v", got)
	}
}

func TestDotScreenSaturatesAndKeepsAlpha(t *testing.T) {
	black := run(&DotScreen{Center: [2]float32{0.5, 0.5}, Angle: 1.57, Scale: 1, Size: [2]float32{256, 256}}, solid(8, 8, [4]float32{0, 0, 0, 0.5}))
	white := run(&DotScreen{Center: [2]float32{0.5, 0.5}, Angle: 1.57, Scale: 1, Size: [2]float32{256, 256}}, solid(8, 8, [4]float32{1, 1, 1, 1}))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if c := black.Get(x, y); c != [4]float32{0, 0, 0, 0.5} {
				t.Fatalf("black input -> %v", c)
			}
			if c := white.Get(x, y); c != [4]float32{1, 1, 1, 1} {
				t.Fatalf("white input -> %v", c)
			}
		}
	}
}

func TestDotScreenPatternVaries(t *testing.T) {
	fx := &DotScreen{Center: [2]float32{0.5, 0.5}, Angle: 1.57, Scale: 1, Size: [2]float32{256, 256}}
	src := solid(64, 64, [4]float32{0.5, 0.5, 0.5, 1})
	dst := run(fx, src)
	lo, hi := float32(1), float32(0)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := dst.Get(x, y)
			lo, hi = min(lo, c[0]), max(hi, c[0])
		}
	}
	if lo > 0.1 || hi < 0.9 {
		t.Errorf("gray input gave range [%v, %v], want dots", lo, hi)
	}
}

func TestRGBShift(t *testing.T) {
	src := raster.NewImage(10, 1)
	src.Put(5, 0, [4]float32{1, 1, 1, 1})

	dst := run(&RGBShift{Amount: 0.1}, src)
	tests := []struct {
		x    int
		want [4]float32
	}{
		{4, [4]float32{1, 0, 0, 0}},
		{5, [4]float32{0, 1, 0, 1}},
		{6, [4]float32{0, 0, 1, 0}},
	}
	for _, tt := range tests {
		c := dst.Get(tt.x, 0)
		for k := range c {
			if !near(c[k], tt.want[k]) {
				t.Errorf("x=%d -> %v, want %v", tt.x, c, tt.want)
				break
			}
		}
	}

	same := run(&RGBShift{Amount: 0}, src)
	for i := range src.Pix {
		if !near(same.Pix[i], src.Pix[i]) {
			t.Fatal("zero amount changed the image")
		}
	}
}

func TestPixelateUV(t *testing.T) {
	u, v := PixelateUV(0.519, 0.999, 90)
	if !near(u, 46.0/90) || !near(v, 89.0/90) {
		t.Errorf("got %v, %v", u, v)
	}
	if u, v := PixelateUV(0.3, 0.7, 0); u != 0.3 || v != 0.7 {
		t.Errorf("grid 0 changed uv: %v %v", u, v)
	}
}

func TestPixelateBlocks(t *testing.T) {
	src := raster.NewImage(8, 8)
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			src.Put(x, y, [4]float32{float32(x) / 8, 0, 0, 1})
		}
	}
	dst := run(&Pixelate{Grid: 2}, src)
	if dst.Get(0, 0) != dst.Get(3, 3) {
		t.Error("pixels in one cell differ")
	}
	if dst.Get(3, 0) == dst.Get(4, 0) {
		t.Error("adjacent cells equal")
	}
}

func TestBloomMath(t *testing.T) {
	if c := GaussianCoefficients(3); len(c) != 3 || !near(c[0], 0.39894/3) {
		t.Errorf("coefficients = %v", c)
	}

	b := &Bloom{Radius: 0}
	if b.MipFactor(1) != 0.8 {
		t.Errorf("radius 0 factor = %v", b.MipFactor(1))
	}
	b.Radius = 1
	if !near(b.MipFactor(1), 0.4) {
		t.Errorf("radius 1 factor = %v", b.MipFactor(1))
	}

	sizes := MipSizes(960, 540)
	want := [BloomMips][2]int{{480, 270}, {240, 135}, {120, 67}, {60, 33}, {30, 16}}
	if sizes != want {
		t.Errorf("mip sizes = %v", sizes)
	}
	if s := MipSizes(3, 3); s[4] != [2]int{1, 1} {
		t.Errorf("tiny mips = %v", s)
	}
}

func TestBloomBelowThresholdIsIdentity(t *testing.T) {
	src := solid(16, 16, [4]float32{0.4, 0.4, 0.4, 1})
	dst := run(&Bloom{Strength: 1, Radius: 0.5, Threshold: 1}, src)
	for i := range src.Pix {
		if !near(dst.Pix[i], src.Pix[i]) {
			t.Fatalf("pix %d: %v != %v", i, dst.Pix[i], src.Pix[i])
		}
	}
}

func TestBloomSpreadsBrightPixels(t *testing.T) {
	src := raster.NewImage(32, 32)
	for y := 14; y < 18; y++ {
		for x := 14; x < 18; x++ {
			src.Put(x, y, [4]float32{1, 1, 1, 1})
		}
	}
	dst := run(&Bloom{Strength: 1, Radius: 0, Threshold: 0.5}, src)
	if c := dst.Get(11, 16); c[0] <= 0 || c[3] <= 0 {
		t.Errorf("no glow next to the bright square: %v", c)
	}
	if c := dst.Get(0, 0); c[0] >= dst.Get(11, 16)[0] {
		t.Errorf("glow does not fall off: corner %v", c)
	}

	zero := run(&Bloom{Strength: 0, Threshold: 0.5}, src)
	for i := range src.Pix {
		if !near(zero.Pix[i], src.Pix[i]) {
			t.Fatal("zero strength changed the image")
		}
	}
}

func TestToggle(t *testing.T) {
	fx := &Output{}
	if !fx.Enabled() {
		t.Fatal("effects start enabled")
	}
	fx.SetEnabled(false)
	if fx.Enabled() {
		t.Fatal("SetEnabled(false) ignored")
	}
}
