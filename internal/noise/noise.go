// Package noise implements the ambient distortion field: a seeded, continuous
// 3D noise sampled at scaled position plus scrolled time.
package noise

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"github.com/Faultbox/pulsemesh/pkg/math"
)

// Backend names accepted by New.
const (
	BackendSimplex = "simplex"
	BackendPerlin  = "perlin"
)

// Perlin parameters: persistence (alpha), frequency multiplier (beta), octaves.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

// Source is a raw 3D noise generator returning values roughly in [-1, 1].
type Source interface {
	Eval3(x, y, z float64) float64
}

type perlinSource struct {
	p *perlin.Perlin
}

func (s perlinSource) Eval3(x, y, z float64) float64 {
	return s.p.Noise3D(x, y, z)
}

// NewSource creates a seeded noise source for the named backend.
func NewSource(backend string, seed int64) (Source, error) {
	switch backend {
	case BackendSimplex, "":
		return opensimplex.New(seed), nil
	case BackendPerlin:
		return perlinSource{p: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)}, nil
	default:
		return nil, fmt.Errorf("unknown noise backend %q", backend)
	}
}

// Field samples a Source in space and time.
type Field struct {
	src       Source
	scale     float32
	timeScale float32
}

// NewField wraps src. scale multiplies positions, timeScale multiplies the
// elapsed time added to every axis.
func NewField(src Source, scale, timeScale float32) *Field {
	return &Field{src: src, scale: scale, timeScale: timeScale}
}

// New is NewSource followed by NewField.
func New(backend string, seed int64, scale, timeScale float32) (*Field, error) {
	src, err := NewSource(backend, seed)
	if err != nil {
		return nil, err
	}
	return NewField(src, scale, timeScale), nil
}

// Sample returns the noise at p and time t shifted into [0, 2].
func (f *Field) Sample(p math.Vec3, t float32) float32 {
	shift := float64(t * f.timeScale)
	v := f.src.Eval3(
		float64(p.X*f.scale)+shift,
		float64(p.Y*f.scale)+shift,
		float64(p.Z*f.scale)+shift,
	)
	// Perlin octave sums can overshoot the unit range slightly
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	return float32(v + 1)
}

// Scale returns the spatial scale.
func (f *Field) Scale() float32 { return f.scale }

// TimeScale returns the time scale.
func (f *Field) TimeScale() float32 { return f.timeScale }
