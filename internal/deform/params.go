package deform

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/pulsemesh/internal/noise"
)

// AmbientParams tune the breathing distortion.
type AmbientParams struct {
	Strength  float32 // displacement per unit noise and unit radius
	Scale     float32 // spatial frequency of the noise
	TimeScale float32 // how fast the noise scrolls
	Backend   string  // noise.BackendSimplex or noise.BackendPerlin
	Seed      int64
}

// DefaultAmbientParams returns the stock breathing settings.
func DefaultAmbientParams() AmbientParams {
	return AmbientParams{
		Strength:  0.1,
		Scale:     0.2,
		TimeScale: 0.4,
		Backend:   noise.BackendSimplex,
	}
}

// Validate checks every field.
func (p AmbientParams) Validate() error {
	if !finite(p.Strength) || p.Strength < 0 {
		return configErr("ambient.strength", p.Strength, "must be finite and non-negative")
	}
	if !finite(p.Scale) || p.Scale <= 0 {
		return configErr("ambient.scale", p.Scale, "must be finite and positive")
	}
	if !finite(p.TimeScale) || p.TimeScale < 0 {
		return configErr("ambient.time_scale", p.TimeScale, "must be finite and non-negative")
	}
	switch p.Backend {
	case noise.BackendSimplex, noise.BackendPerlin, "":
	default:
		return configErr("ambient.backend", p.Backend, "unknown noise backend")
	}
	return nil
}

// RippleParams are the physical constants of a ripple wave.
type RippleParams struct {
	Speed     float32 // propagation speed, units/s
	Frequency float32 // angular rate of oscillation, rad/s
	Damping   float32 // exponential decay rate, 1/s
	Amplitude float32 // peak displacement along the normal
	Falloff   float32 // distance over which magnitude drops by 1/e
}

// DefaultRippleParams returns the stock ripple.
func DefaultRippleParams() RippleParams {
	return RippleParams{
		Speed:     6.0,
		Frequency: 4.0,
		Damping:   1.2,
		Amplitude: 0.8,
		Falloff:   0.6,
	}
}

// Validate rejects non-positive or non-finite values. A zero speed or falloff
// would put infinities into the wave equation.
func (p RippleParams) Validate() error {
	checks := []struct {
		name  string
		value float32
	}{
		{"ripple.speed", p.Speed},
		{"ripple.frequency", p.Frequency},
		{"ripple.damping", p.Damping},
		{"ripple.amplitude", p.Amplitude},
		{"ripple.falloff", p.Falloff},
	}
	for _, c := range checks {
		if !finite(c.value) || c.value <= 0 {
			return configErr(c.name, c.value, "must be finite and positive")
		}
	}
	return nil
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
