package opengl

// Shader sources for the OpenGL device. The image-space programs follow the
// CPU kernels in pkg/effects and pkg/compositor; texture coordinates have
// v = 0 at the bottom row.

// Vertex shader for scene geometry
const sceneVertexShader = `
#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 model;
uniform mat4 viewProjection;
uniform mat3 normalMatrix;

out vec3 Normal;
out vec2 TexCoord;

void main() {
    Normal = normalMatrix * aNormal;
    TexCoord = aTexCoord;
    gl_Position = viewProjection * model * vec4(aPos, 1.0);
}
`

// Fragment shader for scene geometry: diffuse material under a hemisphere
// light, written with premultiplied alpha
const sceneFragmentShader = `
#version 410 core
in vec3 Normal;
in vec2 TexCoord;
out vec4 FragColor;

uniform vec4 baseColor;
uniform sampler2D baseMap;
uniform bool useMap;
uniform vec3 skyColor;
uniform vec3 groundColor;
uniform float lightIntensity;

const float PI = 3.141592653589793;

void main() {
    vec4 albedo = baseColor;
    if (useMap) {
        albedo *= texture(baseMap, TexCoord);
    }
    vec3 n = normalize(Normal);
    float w = 0.5 * n.y + 0.5;
    vec3 irradiance = mix(groundColor, skyColor, w) * lightIntensity / PI;
    FragColor = vec4(albedo.rgb * irradiance * albedo.a, albedo.a);
}
`

// Vertex shader for every full-screen pass
const fullscreenVertexShader = `
#version 410 core
layout (location = 0) in vec2 aPos;

out vec2 vUv;

void main() {
    vUv = aPos * 0.5 + 0.5;
    gl_Position = vec4(aPos, 0.0, 1.0);
}
`

const copyFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;

void main() {
    FragColor = texture(tDiffuse, vUv);
}
`

const highPassFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;
uniform float luminosityThreshold;
uniform float smoothWidth;

void main() {
    vec4 texel = texture(tDiffuse, vUv);
    float v = dot(texel.rgb, vec3(0.299, 0.587, 0.114));
    float alpha = smoothstep(luminosityThreshold, luminosityThreshold + smoothWidth, v);
    FragColor = texel * alpha;
}
`

// Separable Gaussian; coefficients[0] is the center tap
const blurFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D colorTexture;
uniform vec2 invSize;
uniform vec2 direction;
uniform int kernelRadius;
uniform float coefficients[11];

void main() {
    float weightSum = coefficients[0];
    vec4 diffuseSum = texture(colorTexture, vUv) * weightSum;
    for (int i = 1; i < kernelRadius; i++) {
        float w = coefficients[i];
        vec2 offset = direction * invSize * float(i);
        diffuseSum += (texture(colorTexture, vUv + offset) + texture(colorTexture, vUv - offset)) * w;
        weightSum += 2.0 * w;
    }
    FragColor = diffuseSum / weightSum;
}
`

// Adds the weighted blur levels onto the source. bloomFactors already
// include the strength.
const bloomCompositeFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;
uniform sampler2D blurTexture1;
uniform sampler2D blurTexture2;
uniform sampler2D blurTexture3;
uniform sampler2D blurTexture4;
uniform sampler2D blurTexture5;
uniform float bloomFactors[5];

void main() {
    vec4 bloom = bloomFactors[0] * texture(blurTexture1, vUv) +
        bloomFactors[1] * texture(blurTexture2, vUv) +
        bloomFactors[2] * texture(blurTexture3, vUv) +
        bloomFactors[3] * texture(blurTexture4, vUv) +
        bloomFactors[4] * texture(blurTexture5, vUv);
    FragColor = texture(tDiffuse, vUv) + bloom;
}
`

const dotScreenFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;
uniform vec2 center;
uniform float angle;
uniform float scale;
uniform vec2 tSize;

float pattern() {
    float s = sin(angle), c = cos(angle);
    vec2 tex = vUv * tSize - center;
    vec2 point = vec2(c * tex.x - s * tex.y, s * tex.x + c * tex.y) * scale;
    return (sin(point.x) * sin(point.y)) * 4.0;
}

void main() {
    vec4 color = texture(tDiffuse, vUv);
    float average = (color.r + color.g + color.b) / 3.0;
    FragColor = vec4(vec3(average * 10.0 - 5.0 + pattern()), color.a);
}
`

const rgbShiftFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;
uniform float amount;
uniform float angle;

void main() {
    vec2 offset = amount * vec2(cos(angle), sin(angle));
    vec4 cr = texture(tDiffuse, vUv + offset);
    vec4 cga = texture(tDiffuse, vUv);
    vec4 cb = texture(tDiffuse, vUv - offset);
    FragColor = vec4(cr.r, cga.g, cb.b, cga.a);
}
`

const pixelateFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;
uniform float grid;

void main() {
    FragColor = texture(tDiffuse, floor(vUv * grid) / grid);
}
`

const outputFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D tDiffuse;

vec3 linearToSRGB(vec3 c) {
    vec3 lo = c * 12.92;
    vec3 hi = pow(c, vec3(1.0 / 2.4)) * 1.055 - 0.055;
    return mix(lo, hi, vec3(greaterThan(c, vec3(0.0031308))));
}

void main() {
    vec4 color = texture(tDiffuse, vUv);
    FragColor = vec4(linearToSRGB(color.rgb), color.a);
}
`

// Final blend onto the default framebuffer. mode 0 attenuates each layer by
// the accumulated alpha, mode 1 by the base alpha only.
const compositeFragmentShader = `
#version 410 core
in vec2 vUv;
out vec4 FragColor;

uniform sampler2D inputA;
uniform sampler2D inputB;
uniform sampler2D inputC;
uniform int inputCount;
uniform int mode;
uniform float pixelate;
uniform float time;

void main() {
    vec2 uvA = vUv;
    if (pixelate > 0.0) {
        uvA = floor(vUv * pixelate) / pixelate;
    }
    vec4 result = texture(inputA, uvA);
    float baseAlpha = result.a;

    vec4 b = texture(inputB, vUv);
    result += b * (1.0 - result.a) * b.a;

    if (inputCount > 2) {
        vec4 c = texture(inputC, vUv);
        float cover = mode == 1 ? baseAlpha : result.a;
        result += c * (1.0 - cover) * c.a;
    }
    FragColor = clamp(result, 0.0, 1.0);
}
`
