package util

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Lerp performs linear interpolation between a and b with t in [0,1]
func Lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

// Clamp01 restricts a value to [0,1]. NaN maps to 0.
func Clamp01(value float32) float32 {
	if !(value > 0) {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// SmoothStep is the GLSL smoothstep: Hermite interpolation of x between edge0 and edge1.
func SmoothStep(edge0, edge1, x float32) float32 {
	t := Clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// WrapAngle maps an angle in radians into [0, 2π).
func WrapAngle(angle float64) float64 {
	a := math.Mod(angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	// math.Mod can return exactly 2π after the correction above for tiny negatives
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// ParseHexColor parses "#rrggbb", "rrggbb", "#rrggbbaa" or "0xrrggbb" into
// normalized RGBA components.
func ParseHexColor(s string) ([4]float32, error) {
	h := strings.TrimSpace(strings.ToLower(s))
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(h, "0x")

	if len(h) != 6 && len(h) != 8 {
		return [4]float32{}, fmt.Errorf("invalid color %q: want 6 or 8 hex digits", s)
	}
	if len(h) == 6 {
		h += "ff"
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return [4]float32{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return [4]float32{
		float32((v>>24)&0xff) / 255,
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// CreateDirIfNotExist creates a directory if it doesn't exist
func CreateDirIfNotExist(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ResolvePath joins p onto base unless p is already absolute or base is empty.
func ResolvePath(base, p string) string {
	if p == "" || base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// RollingAverage keeps the mean and median of the last N samples.
type RollingAverage struct {
	samples []float64
	next    int
	full    bool
}

// NewRollingAverage creates a window of the given size (minimum 1).
func NewRollingAverage(windowSize int) *RollingAverage {
	if windowSize < 1 {
		windowSize = 1
	}
	return &RollingAverage{samples: make([]float64, windowSize)}
}

// Add records a sample, evicting the oldest once the window is full.
func (r *RollingAverage) Add(v float64) {
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of samples currently held.
func (r *RollingAverage) Len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Mean returns the mean of the held samples, or 0 if there are none.
func (r *RollingAverage) Mean() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.samples[:n] {
		sum += v
	}
	return sum / float64(n)
}

// Median returns the median of the held samples, or 0 if there are none.
func (r *RollingAverage) Median() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, r.samples[:n])
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
