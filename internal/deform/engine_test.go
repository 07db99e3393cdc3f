package deform

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/pulsemesh/internal/mesh"
	"github.com/Faultbox/pulsemesh/pkg/math"
)

// constSource returns the same noise value everywhere.
type constSource float64

func (c constSource) Eval3(x, y, z float64) float64 { return float64(c) }

// sixVertexMesh has vertex 1 exactly 3 units from vertex 0.
func sixVertexMesh(t *testing.T) *mesh.Mesh {
	t.Helper()
	positions := []float32{
		0, 0, 0,
		3, 0, 0,
		0, 1, 0,
		0, 0, 1,
		-1, 0, 0,
		0, -2, 0,
	}
	normals := []float32{
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		-1, 0, 0,
		0, -1, 0,
	}
	m, err := mesh.New(positions, normals)
	require.NoError(t, err)
	return m
}

// sphereMesh spreads n vertices over a sphere of the given radius.
func sphereMesh(t *testing.T, n int, radius float32) *mesh.Mesh {
	t.Helper()
	positions := make([]float32, 0, 3*n)
	normals := make([]float32, 0, 3*n)
	golden := gomath.Pi * (3 - gomath.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := gomath.Sqrt(1 - y*y)
		theta := golden * float64(i)
		nrm := math.Vec3{X: float32(r * gomath.Cos(theta)), Y: float32(y), Z: float32(r * gomath.Sin(theta))}.Normalize()
		p := nrm.Scale(radius)
		positions = append(positions, p.X, p.Y, p.Z)
		normals = append(normals, nrm.X, nrm.Y, nrm.Z)
	}
	m, err := mesh.New(positions, normals)
	require.NoError(t, err)
	return m
}

func newEngine(t *testing.T, m *mesh.Mesh, opts ...Option) (*Engine, *ManualClock) {
	t.Helper()
	clock := &ManualClock{}
	e, err := New(append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	if m != nil {
		require.NoError(t, e.SetMesh(m))
	}
	return e, clock
}

func assertMirrored(t *testing.T, e *Engine) {
	t.Helper()
	assert.Equal(t, e.MeshBuffer().Positions(), e.LineBuffer().Positions(), "line buffer must mirror mesh buffer")
}

func TestWorkedExample(t *testing.T) {
	m := sixVertexMesh(t)
	e, clock := newEngine(t, m, WithRipple(RippleParams{
		Speed: 6.0, Frequency: 4.0, Damping: 1.2, Amplitude: 0.8, Falloff: 0.6,
	}))

	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))
	r := e.ActiveRipple()
	require.NotNil(t, r)
	assert.InDelta(t, 3.0, r.Distance(1), 1e-6)
	assert.InDelta(t, 0.5, r.TimeOffset(1), 1e-6)

	mode, err := e.Tick(0.4)
	require.NoError(t, err)
	assert.Equal(t, ModeRipple, mode)
	assert.Equal(t, m.Position(1), math.At(e.MeshBuffer().Positions(), 1), "wave has not arrived at 0.4s")

	_, err = e.Tick(1.5)
	require.NoError(t, err)

	want := gomath.Sin(4.0) * gomath.Exp(-1.2) * 0.8 * gomath.Exp(-5.0)
	assert.InDelta(t, -0.0012287, want, 1e-6)

	got := math.At(e.MeshBuffer().Positions(), 1)
	// normal of vertex 1 is +X
	assert.InDelta(t, 3.0+want, float64(got.X), 1e-6)
	assert.Equal(t, float32(0), got.Y)
	assert.Equal(t, float32(0), got.Z)
	assertMirrored(t, e)
}

func TestRippleCausality(t *testing.T) {
	m := sphereMesh(t, 60, 1)
	p := DefaultRippleParams()
	e, clock := newEngine(t, m, WithRipple(p), WithSettleThreshold(0))

	clock.Set(2)
	require.NoError(t, e.CreateRipple(7))
	r := e.ActiveRipple()

	for step := 0; step <= 80; step++ {
		now := 2 + float32(step)*0.005
		elapsed := now - r.Start
		_, err := e.Tick(now)
		require.NoError(t, err)

		buf := e.MeshBuffer().Positions()
		for i := 0; i < m.VertexCount(); i++ {
			off := r.TimeOffset(i)
			got := math.At(buf, i)
			if elapsed <= off {
				assert.Equal(t, m.Position(i), got, "vertex %d moved before arrival (elapsed %v, offset %v)", i, elapsed, off)
			}
		}
	}

	// The origin diverges as soon as any time has passed
	_, err := e.Tick(2.01)
	require.NoError(t, err)
	assert.NotEqual(t, m.Position(7), math.At(e.MeshBuffer().Positions(), 7))
}

func TestRippleDisplacesAlongNormal(t *testing.T) {
	m := sphereMesh(t, 40, 1.5)
	e, clock := newEngine(t, m, WithSettleThreshold(0))
	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))

	_, err := e.Tick(0.7)
	require.NoError(t, err)

	for i := 0; i < m.VertexCount(); i++ {
		disp := math.At(e.MeshBuffer().Positions(), i).Sub(m.Position(i))
		cross := disp.Cross(m.Normal(i))
		assert.InDelta(t, 0, cross.Length(), 1e-5, "vertex %d displaced off its normal", i)
	}
}

func TestMagnitudeDecay(t *testing.T) {
	p := DefaultRippleParams()
	const distance = 0.4
	offset := distance / p.Speed

	var last float32 = gomath.MaxFloat32
	for k := 1; k <= 400; k++ {
		eff := float32(k) * 0.025
		mag, arrived := Magnitude(p, distance, offset+eff)
		require.True(t, arrived)

		bound := p.Amplitude * float32(gomath.Exp(float64(-p.Damping*eff)))
		assert.LessOrEqual(t, abs(mag), bound+1e-7)

		env := Envelope(p, distance, offset+eff)
		assert.LessOrEqual(t, env, last)
		last = env
	}
	mag, _ := Magnitude(p, distance, offset+30)
	assert.InDelta(t, 0, mag, 1e-9)
}

func TestMagnitudeFalloff(t *testing.T) {
	p := DefaultRippleParams()
	const eff = 0.3 // sin(1.2) > 0

	prev, _ := Magnitude(p, 0, eff)
	for k := 1; k <= 20; k++ {
		d := float32(k) * 0.1
		mag, arrived := Magnitude(p, d, d/p.Speed+eff)
		require.True(t, arrived)
		assert.Less(t, mag, prev, "magnitude should shrink with distance (d=%v)", d)
		prev = mag
	}
}

func TestMagnitudeOriginImmediate(t *testing.T) {
	p := DefaultRippleParams()
	_, arrived := Magnitude(p, 0, 0)
	assert.False(t, arrived, "no time has passed")

	mag, arrived := Magnitude(p, 0, 0.001)
	assert.True(t, arrived)
	assert.NotZero(t, mag)
}

func TestAmbientScalesWithDistance(t *testing.T) {
	positions := []float32{
		0.5, 0, 0,
		1, 0, 0,
	}
	normals := []float32{
		1, 0, 0,
		1, 0, 0,
	}
	m, err := mesh.New(positions, normals)
	require.NoError(t, err)

	e, _ := newEngine(t, m, WithNoiseSource(constSource(0.25)))
	_, err = e.Tick(3)
	require.NoError(t, err)

	buf := e.MeshBuffer().Positions()
	near := math.At(buf, 0).Sub(m.Position(0)).Length()
	far := math.At(buf, 1).Sub(m.Position(1)).Length()

	// displacement = p * (n*strength) * |p| with n = 1.25, strength = 0.1
	assert.InDelta(t, 0.5*0.125*0.5, near, 1e-6)
	assert.InDelta(t, 1*0.125*1, far, 1e-6)
	assert.InDelta(t, 4, far/near, 1e-4)
	assertMirrored(t, e)
}

func TestAmbientDoesNotAccumulate(t *testing.T) {
	m := sphereMesh(t, 30, 1)
	e, _ := newEngine(t, m)

	_, err := e.Tick(1.25)
	require.NoError(t, err)
	first := append([]float32(nil), e.MeshBuffer().Positions()...)

	for i := 0; i < 5; i++ {
		_, err = e.Tick(float32(i) * 0.3)
		require.NoError(t, err)
	}
	_, err = e.Tick(1.25)
	require.NoError(t, err)
	assert.Equal(t, first, e.MeshBuffer().Positions())
}

func TestResetPositions(t *testing.T) {
	m := sphereMesh(t, 50, 2)
	e, clock := newEngine(t, m)

	_, err := e.Tick(0.8)
	require.NoError(t, err)
	assert.NotEqual(t, m.Positions(), e.MeshBuffer().Positions())

	clock.Set(1)
	require.NoError(t, e.CreateRipple(3))
	_, err = e.Tick(1.2)
	require.NoError(t, err)

	e.MeshBuffer().MarkClean()
	e.LineBuffer().MarkClean()
	require.NoError(t, e.ResetPositions())

	assert.Equal(t, m.Positions(), e.MeshBuffer().Positions())
	assertMirrored(t, e)
	assert.True(t, e.MeshBuffer().Dirty())
	assert.True(t, e.LineBuffer().Dirty())
	assert.False(t, e.RippleActive(), "reset stops the ripple")
}

func TestMirrorAcrossModes(t *testing.T) {
	m := sphereMesh(t, 80, 1)
	e, clock := newEngine(t, m)

	for i := 0; i < 10; i++ {
		if i == 4 {
			clock.Set(float32(i) * 0.1)
			require.NoError(t, e.CreateRipple(11))
		}
		_, err := e.Tick(float32(i) * 0.1)
		require.NoError(t, err)
		assertMirrored(t, e)
	}
}

func TestDirtyFlags(t *testing.T) {
	e, _ := newEngine(t, sixVertexMesh(t))
	assert.True(t, e.MeshBuffer().Dirty(), "SetMesh marks dirty")

	e.MeshBuffer().MarkClean()
	e.LineBuffer().MarkClean()
	assert.False(t, e.MeshBuffer().Dirty())
	assert.False(t, e.LineBuffer().Dirty())

	_, err := e.Tick(0.1)
	require.NoError(t, err)
	assert.True(t, e.MeshBuffer().Dirty())
	assert.True(t, e.LineBuffer().Dirty())
}

func TestMeshNotReady(t *testing.T) {
	e, _ := newEngine(t, nil)

	_, err := e.Tick(1)
	assert.ErrorIs(t, err, ErrMeshNotReady)
	assert.ErrorIs(t, e.CreateRipple(0), ErrMeshNotReady)
	assert.ErrorIs(t, e.ResetPositions(), ErrMeshNotReady)
	_, err = e.CreateRandomRipple()
	assert.ErrorIs(t, err, ErrMeshNotReady)
	assert.ErrorIs(t, e.SetMesh(nil), ErrMeshNotReady)

	assert.Nil(t, e.MeshBuffer().Positions())
	assert.Nil(t, e.LineBuffer().Positions())
	assert.Nil(t, e.EdgeIndices())
}

func TestRippleParamsValidation(t *testing.T) {
	base := DefaultRippleParams()
	nan := float32(gomath.NaN())
	inf := float32(gomath.Inf(1))

	tests := []struct {
		name   string
		mutate func(*RippleParams)
		field  string
	}{
		{"zero speed", func(p *RippleParams) { p.Speed = 0 }, "ripple.speed"},
		{"negative frequency", func(p *RippleParams) { p.Frequency = -1 }, "ripple.frequency"},
		{"zero damping", func(p *RippleParams) { p.Damping = 0 }, "ripple.damping"},
		{"nan amplitude", func(p *RippleParams) { p.Amplitude = nan }, "ripple.amplitude"},
		{"inf falloff", func(p *RippleParams) { p.Falloff = inf }, "ripple.falloff"},
		{"zero falloff", func(p *RippleParams) { p.Falloff = 0 }, "ripple.falloff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
	assert.NoError(t, base.Validate())
}

func TestCreateRippleRejectsWithoutMutation(t *testing.T) {
	m := sixVertexMesh(t)
	e, clock := newEngine(t, m)

	clock.Set(1)
	require.NoError(t, e.CreateRipple(2))
	before := e.ActiveRipple()

	var cfgErr *ConfigError
	err := e.CreateRipple(6)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ripple.origin", cfgErr.Field)

	err = e.CreateRipple(-1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := DefaultRippleParams()
	bad.Speed = 0
	assert.ErrorIs(t, e.CreateRippleWith(1, bad), ErrInvalidConfig)
	assert.ErrorIs(t, e.SetRippleParams(bad), ErrInvalidConfig)

	assert.Same(t, before, e.ActiveRipple(), "rejected ripple must not replace the active one")
	assert.Equal(t, DefaultRippleParams(), e.RippleParams())
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(WithWorkers(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithSettleThreshold(-1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := DefaultRippleParams()
	bad.Damping = -2
	_, err = New(WithRipple(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	amb := DefaultAmbientParams()
	amb.Backend = "worley"
	_, err = New(WithAmbient(amb))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	amb = DefaultAmbientParams()
	amb.Scale = 0
	_, err = New(WithAmbient(amb))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRippleSupersedes(t *testing.T) {
	m := sphereMesh(t, 20, 1)
	e, clock := newEngine(t, m)

	clock.Set(0)
	require.NoError(t, e.CreateRipple(1))
	clock.Set(0.5)
	require.NoError(t, e.CreateRipple(4))

	r := e.ActiveRipple()
	require.NotNil(t, r)
	assert.Equal(t, 4, r.Origin)
	assert.Equal(t, float32(0.5), r.Start)

	_, err := e.Tick(0.6)
	require.NoError(t, err)
	stats := e.Stats()
	assert.Equal(t, ModeRipple, stats.Mode)
	assert.Equal(t, 4, stats.RippleOrigin)
	assert.InDelta(t, 0.1, stats.RippleAge, 1e-6)
}

func TestStopRipple(t *testing.T) {
	e, clock := newEngine(t, sixVertexMesh(t))
	assert.False(t, e.StopRipple())

	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))
	assert.True(t, e.StopRipple())
	assert.False(t, e.RippleActive())

	mode, err := e.Tick(0.2)
	require.NoError(t, err)
	assert.Equal(t, ModeAmbient, mode)
	assert.Equal(t, -1, e.Stats().RippleOrigin)
}

func TestRippleSettles(t *testing.T) {
	m := sphereMesh(t, 30, 1)
	e, clock := newEngine(t, m, WithSettleThreshold(1e-3))

	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))

	mode, err := e.Tick(0.5)
	require.NoError(t, err)
	assert.Equal(t, ModeRipple, mode)
	assert.True(t, e.RippleActive())

	// 0.8 * e^(-1.2*8) is well under 1e-3
	mode, err = e.Tick(8)
	require.NoError(t, err)
	assert.Equal(t, ModeRipple, mode, "the settling tick still renders the ripple")
	assert.False(t, e.RippleActive())

	mode, err = e.Tick(8.1)
	require.NoError(t, err)
	assert.Equal(t, ModeAmbient, mode)
}

func TestRippleRunsUntilStoppedWithoutThreshold(t *testing.T) {
	e, clock := newEngine(t, sixVertexMesh(t), WithSettleThreshold(0))
	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))

	_, err := e.Tick(1000)
	require.NoError(t, err)
	assert.True(t, e.RippleActive())
}

func TestMaxDistortion(t *testing.T) {
	m := sixVertexMesh(t)
	e, clock := newEngine(t, m, WithSettleThreshold(0))
	clock.Set(0)
	require.NoError(t, e.CreateRipple(0))

	_, err := e.Tick(0.3)
	require.NoError(t, err)

	p := e.RippleParams()
	r := e.ActiveRipple()
	var want float32
	for i := 0; i < m.VertexCount(); i++ {
		if mag, ok := Magnitude(p, r.Distance(i), 0.3); ok && abs(mag) > want {
			want = abs(mag)
		}
	}
	assert.Greater(t, want, float32(0))
	assert.Equal(t, want, e.MaxDistortion())
}

func TestWorkersMatchSerial(t *testing.T) {
	m := sphereMesh(t, 1000, 1)
	serial, sc := newEngine(t, m)
	parallel, pc := newEngine(t, m, WithWorkers(6))

	for _, tm := range []float32{0.2, 0.9} {
		_, err := serial.Tick(tm)
		require.NoError(t, err)
		_, err = parallel.Tick(tm)
		require.NoError(t, err)
		assert.Equal(t, serial.MeshBuffer().Positions(), parallel.MeshBuffer().Positions())
	}

	sc.Set(1)
	pc.Set(1)
	require.NoError(t, serial.CreateRipple(500))
	require.NoError(t, parallel.CreateRipple(500))
	for _, tm := range []float32{1.1, 1.4, 2.0} {
		_, err := serial.Tick(tm)
		require.NoError(t, err)
		_, err = parallel.Tick(tm)
		require.NoError(t, err)
		assert.Equal(t, serial.MeshBuffer().Positions(), parallel.MeshBuffer().Positions())
		assert.Equal(t, serial.MaxDistortion(), parallel.MaxDistortion())
		assertMirrored(t, parallel)
	}
}

func TestCreateRandomRipple(t *testing.T) {
	m := sphereMesh(t, 25, 1)
	a, _ := newEngine(t, m, WithSeed(9))
	b, _ := newEngine(t, m, WithSeed(9))

	for i := 0; i < 10; i++ {
		oa, err := a.CreateRandomRipple()
		require.NoError(t, err)
		ob, err := b.CreateRandomRipple()
		require.NoError(t, err)

		assert.Equal(t, oa, ob, "same seed picks the same origins")
		assert.GreaterOrEqual(t, oa, 0)
		assert.Less(t, oa, m.VertexCount())
		assert.Equal(t, oa, a.ActiveRipple().Origin)
	}
}

func TestEdgeIndices(t *testing.T) {
	e, _ := newEngine(t, sixVertexMesh(t))
	assert.Len(t, e.EdgeIndices(), 6*5)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "ambient", ModeAmbient.String())
	assert.Equal(t, "ripple", ModeRipple.String())
}
