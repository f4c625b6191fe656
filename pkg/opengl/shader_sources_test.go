package opengl

import (
	"strings"
	"testing"

	"multipass/pkg/effects"
)

func TestShaderSourcesDeclareUniforms(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		uniforms []string
	}{
		{"scene", sceneFragmentShader, []string{"baseColor", "baseMap", "useMap", "skyColor", "groundColor", "lightIntensity"}},
		{"highpass", highPassFragmentShader, []string{"tDiffuse", "luminosityThreshold", "smoothWidth"}},
		{"blur", blurFragmentShader, []string{"colorTexture", "invSize", "direction", "kernelRadius", "coefficients"}},
		{"bloom", bloomCompositeFragmentShader, []string{"tDiffuse", "blurTexture1", "blurTexture5", "bloomFactors"}},
		{"dotscreen", dotScreenFragmentShader, []string{"tDiffuse", "center", "angle", "scale", "tSize"}},
		{"rgbshift", rgbShiftFragmentShader, []string{"tDiffuse", "amount", "angle"}},
		{"pixelate", pixelateFragmentShader, []string{"tDiffuse", "grid"}},
		{"output", outputFragmentShader, []string{"tDiffuse"}},
		{"composite", compositeFragmentShader, []string{"inputA", "inputB", "inputC", "inputCount", "mode", "pixelate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.source, "#version 410 core") {
				t.Error("missing version directive")
			}
			for _, u := range tt.uniforms {
				if !strings.Contains(tt.source, " "+u+";") && !strings.Contains(tt.source, " "+u+"[") {
					t.Errorf("uniform %s not declared", u)
				}
			}
		})
	}
}

func TestBlurKernelFitsShaderArray(t *testing.T) {
	for _, r := range effects.BloomKernelRadii {
		if r > 11 {
			t.Errorf("kernel radius %d exceeds the coefficients array", r)
		}
	}
	if !strings.Contains(blurFragmentShader, "coefficients[11]") {
		t.Error("coefficient array size changed")
	}
}
