package deform

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/pulsemesh/internal/mesh"
)

// Magnitude evaluates the ripple at a vertex distance from the origin,
// elapsed seconds after the ripple started. arrived is false while the wave
// front has not yet reached the vertex (elapsed <= distance/speed), in which
// case the magnitude is zero.
func Magnitude(p RippleParams, distance, elapsed float32) (magnitude float32, arrived bool) {
	offset := distance / p.Speed
	if elapsed <= offset {
		return 0, false
	}
	eff := elapsed - offset
	return math32.Sin(eff*p.Frequency) *
		math32.Exp(-p.Damping*eff) *
		p.Amplitude *
		math32.Exp(-distance/p.Falloff), true
}

// Envelope is the upper bound of |Magnitude| at the same point. Before the
// wave arrives it is the undamped bound the vertex will see on arrival.
func Envelope(p RippleParams, distance, elapsed float32) float32 {
	eff := elapsed - distance/p.Speed
	if eff < 0 {
		eff = 0
	}
	return p.Amplitude * math32.Exp(-p.Damping*eff) * math32.Exp(-distance/p.Falloff)
}

// Ripple is one propagating disturbance. Distances from the origin are fixed
// when it is created.
type Ripple struct {
	Origin int
	Start  float32
	Params RippleParams

	distances []float32
}

func newRipple(base *mesh.Mesh, origin int, start float32, p RippleParams) *Ripple {
	n := base.VertexCount()
	o := base.Position(origin)
	dist := make([]float32, n)
	for i := 0; i < n; i++ {
		dist[i] = o.Distance(base.Position(i))
	}
	return &Ripple{
		Origin:    origin,
		Start:     start,
		Params:    p,
		distances: dist,
	}
}

// Distance returns the distance from the origin to vertex i.
func (r *Ripple) Distance(i int) float32 {
	return r.distances[i]
}

// TimeOffset returns when the wave front reaches vertex i, relative to Start.
func (r *Ripple) TimeOffset(i int) float32 {
	return r.distances[i] / r.Params.Speed
}
