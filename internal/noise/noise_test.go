package noise

import (
	"testing"

	"github.com/Faultbox/pulsemesh/pkg/math"
)

type constSource float64

func (c constSource) Eval3(x, y, z float64) float64 { return float64(c) }

type recordSource struct {
	x, y, z float64
}

func (r *recordSource) Eval3(x, y, z float64) float64 {
	r.x, r.y, r.z = x, y, z
	return 0
}

func TestSampleRange(t *testing.T) {
	for _, backend := range []string{BackendSimplex, BackendPerlin} {
		t.Run(backend, func(t *testing.T) {
			f, err := New(backend, 42, 0.2, 0.4)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for i := 0; i < 200; i++ {
				p := math.Vec3{X: float32(i) * 0.37, Y: float32(i) * -0.11, Z: float32(i%7) * 0.5}
				v := f.Sample(p, float32(i)*0.05)
				if v < 0 || v > 2 {
					t.Fatalf("sample %d = %v, outside [0, 2]", i, v)
				}
			}
		})
	}
}

func TestSampleDeterministic(t *testing.T) {
	a, _ := New(BackendSimplex, 7, 0.2, 0.4)
	b, _ := New(BackendSimplex, 7, 0.2, 0.4)
	p := math.Vec3{X: 0.3, Y: -1.2, Z: 0.9}

	if a.Sample(p, 1.25) != b.Sample(p, 1.25) {
		t.Error("same seed should produce identical samples")
	}
}

func TestSampleContinuous(t *testing.T) {
	f, _ := New(BackendSimplex, 3, 0.2, 0.4)
	p := math.Vec3{X: 1, Y: 0.5, Z: -0.25}

	prev := f.Sample(p, 0)
	for i := 1; i <= 100; i++ {
		cur := f.Sample(p, float32(i)*0.001)
		if d := cur - prev; d > 0.01 || d < -0.01 {
			t.Fatalf("jump of %v between consecutive samples at step %d", d, i)
		}
		prev = cur
	}
}

func TestSampleCoordinates(t *testing.T) {
	rec := &recordSource{}
	f := NewField(rec, 0.5, 2)

	if got := f.Sample(math.Vec3{X: 2, Y: 4, Z: 6}, 3); got != 1 {
		t.Errorf("zero noise should map to 1, got %v", got)
	}
	if rec.x != 7 || rec.y != 8 || rec.z != 9 {
		t.Errorf("Eval3 called with (%v, %v, %v), want (7, 8, 9)", rec.x, rec.y, rec.z)
	}
}

func TestSampleClamp(t *testing.T) {
	if got := NewField(constSource(1.7), 1, 1).Sample(math.Vec3{}, 0); got != 2 {
		t.Errorf("overshoot should clamp to 2, got %v", got)
	}
	if got := NewField(constSource(-3), 1, 1).Sample(math.Vec3{}, 0); got != 0 {
		t.Errorf("undershoot should clamp to 0, got %v", got)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := New("worley", 1, 1, 1); err == nil {
		t.Error("expected error for unknown backend")
	}
}
