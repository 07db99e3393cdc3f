// Package deform displaces mesh vertices every frame: a noise-driven ambient
// "breathing" or, while one is active, a ripple wave travelling out from an
// origin vertex. It owns the solid-mesh and edge-line position buffers and
// keeps them identical.
//
// An Engine is not safe for concurrent use. Tick, CreateRipple and
// ResetPositions belong to the frame loop.
package deform

import (
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/pulsemesh/internal/mesh"
	"github.com/Faultbox/pulsemesh/internal/noise"
	"github.com/Faultbox/pulsemesh/pkg/math"
)

// minChunk is the smallest vertex range handed to a worker.
const minChunk = 64

// Mode tells which displacement produced the current buffers.
type Mode int

const (
	ModeAmbient Mode = iota
	ModeRipple
)

func (m Mode) String() string {
	switch m {
	case ModeRipple:
		return "ripple"
	default:
		return "ambient"
	}
}

// Stats is a snapshot of engine state for overlays and logs.
type Stats struct {
	Mode          Mode
	Time          float32
	RippleOrigin  int // -1 when no ripple is active
	RippleAge     float32
	MaxDistortion float32
}

// Engine is the deformation engine.
type Engine struct {
	log   *zap.Logger
	clock Clock
	rng   *rand.Rand
	seed  int64

	ambient         AmbientParams
	rippleParams    RippleParams
	source          noise.Source
	field           *noise.Field
	settleThreshold float32
	workers         int

	base  *mesh.Mesh
	lines Buffer
	solid Buffer

	ripple        *Ripple
	lastMode      Mode
	lastTime      float32
	maxDistortion float32
}

// New creates an engine with no mesh attached. Call SetMesh before Tick.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		log:             zap.NewNop(),
		ambient:         DefaultAmbientParams(),
		rippleParams:    DefaultRippleParams(),
		settleThreshold: DefaultSettleThreshold,
		workers:         1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = NewStopwatch()
	}
	e.rng = rand.New(rand.NewSource(e.seed))

	if err := e.rippleParams.Validate(); err != nil {
		return nil, err
	}
	if !finite(e.settleThreshold) || e.settleThreshold < 0 {
		return nil, configErr("engine.settle_threshold", e.settleThreshold, "must be finite and non-negative")
	}
	if e.workers < 1 {
		return nil, configErr("engine.workers", e.workers, "must be at least 1")
	}
	if err := e.SetAmbient(e.ambient); err != nil {
		return nil, err
	}
	return e, nil
}

// SetMesh attaches the base mesh, resets both buffers to the original
// positions and stops any ripple.
func (e *Engine) SetMesh(m *mesh.Mesh) error {
	if m == nil {
		return ErrMeshNotReady
	}
	e.base = m
	e.solid.positions = append(e.solid.positions[:0], m.Positions()...)
	e.lines.positions = append(e.lines.positions[:0], m.Positions()...)
	e.solid.markDirty()
	e.lines.markDirty()
	e.ripple = nil
	e.maxDistortion = 0

	e.log.Info("mesh attached",
		zap.Int("vertices", m.VertexCount()),
		zap.Int("edges", mesh.EdgeCount(m.VertexCount())),
	)
	return nil
}

// Mesh returns the attached base mesh, or nil.
func (e *Engine) Mesh() *mesh.Mesh {
	return e.base
}

// SetAmbient validates and applies new breathing parameters.
func (e *Engine) SetAmbient(p AmbientParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var field *noise.Field
	if e.source != nil {
		field = noise.NewField(e.source, p.Scale, p.TimeScale)
	} else {
		f, err := noise.New(p.Backend, p.Seed, p.Scale, p.TimeScale)
		if err != nil {
			return configErr("ambient.backend", p.Backend, err.Error())
		}
		field = f
	}
	e.ambient = p
	e.field = field
	return nil
}

// Ambient returns the active breathing parameters.
func (e *Engine) Ambient() AmbientParams {
	return e.ambient
}

// SetRippleParams validates and applies the parameters for future ripples.
// A running ripple keeps the parameters it was created with.
func (e *Engine) SetRippleParams(p RippleParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.rippleParams = p
	return nil
}

// RippleParams returns the parameters used by CreateRipple.
func (e *Engine) RippleParams() RippleParams {
	return e.rippleParams
}

// CreateRipple starts a ripple at origin using the engine's ripple
// parameters, timestamped with the engine clock. Any active ripple is
// cancelled first.
func (e *Engine) CreateRipple(origin int) error {
	return e.CreateRippleWith(origin, e.rippleParams)
}

// CreateRandomRipple starts a ripple at a uniformly random vertex and returns
// the chosen origin.
func (e *Engine) CreateRandomRipple() (int, error) {
	if e.base == nil {
		return -1, ErrMeshNotReady
	}
	origin := e.rng.Intn(e.base.VertexCount())
	if err := e.CreateRipple(origin); err != nil {
		return -1, err
	}
	return origin, nil
}

// CreateRippleWith is CreateRipple with explicit parameters.
func (e *Engine) CreateRippleWith(origin int, p RippleParams) error {
	if e.base == nil {
		return ErrMeshNotReady
	}
	if origin < 0 || origin >= e.base.VertexCount() {
		return configErr("ripple.origin", origin, "out of range")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if e.ripple != nil {
		e.log.Debug("ripple superseded",
			zap.Int("origin", e.ripple.Origin),
			zap.Float32("start", e.ripple.Start),
		)
	}
	e.ripple = newRipple(e.base, origin, e.clock.Elapsed(), p)
	e.maxDistortion = 0

	e.log.Info("ripple created",
		zap.Int("origin", origin),
		zap.Float32("start", e.ripple.Start),
		zap.Float32("speed", p.Speed),
		zap.Float32("frequency", p.Frequency),
		zap.Float32("damping", p.Damping),
		zap.Float32("amplitude", p.Amplitude),
		zap.Float32("falloff", p.Falloff),
	)
	return nil
}

// StopRipple cancels the active ripple. The next Tick returns to ambient
// distortion. It reports whether a ripple was running.
func (e *Engine) StopRipple() bool {
	if e.ripple == nil {
		return false
	}
	e.log.Debug("ripple stopped", zap.Int("origin", e.ripple.Origin))
	e.ripple = nil
	return true
}

// RippleActive reports whether a ripple owns the buffers.
func (e *Engine) RippleActive() bool {
	return e.ripple != nil
}

// ActiveRipple returns the running ripple, or nil.
func (e *Engine) ActiveRipple() *Ripple {
	return e.ripple
}

// MaxDistortion returns the largest |magnitude| of the latest ripple step.
func (e *Engine) MaxDistortion() float32 {
	return e.maxDistortion
}

// ResetPositions restores every vertex to its original position, marks both
// buffers dirty and stops any ripple.
func (e *Engine) ResetPositions() error {
	if e.base == nil {
		return ErrMeshNotReady
	}
	e.ripple = nil
	e.maxDistortion = 0
	copy(e.solid.positions, e.base.Positions())
	e.publish()
	e.log.Debug("positions reset")
	return nil
}

// Tick recomputes every vertex for animation time t and returns which mode
// produced the result. Without a mesh it returns ErrMeshNotReady and leaves
// the buffers untouched.
func (e *Engine) Tick(t float32) (Mode, error) {
	if e.base == nil {
		return e.lastMode, ErrMeshNotReady
	}
	e.lastTime = t

	if r := e.ripple; r != nil {
		maxMag, maxEnv := e.stepRipple(r, t-r.Start)
		e.maxDistortion = maxMag
		e.publish()
		e.lastMode = ModeRipple

		if e.settleThreshold > 0 && maxEnv < e.settleThreshold {
			e.log.Info("ripple settled",
				zap.Int("origin", r.Origin),
				zap.Float32("age", t-r.Start),
				zap.Float32("envelope", maxEnv),
			)
			e.ripple = nil
		}
		return ModeRipple, nil
	}

	e.stepAmbient(t)
	e.publish()
	e.lastMode = ModeAmbient
	return ModeAmbient, nil
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() Stats {
	s := Stats{
		Mode:          e.lastMode,
		Time:          e.lastTime,
		RippleOrigin:  -1,
		MaxDistortion: e.maxDistortion,
	}
	if e.ripple != nil {
		s.RippleOrigin = e.ripple.Origin
		s.RippleAge = e.lastTime - e.ripple.Start
	}
	return s
}

// MeshBuffer returns the solid-mesh position buffer.
func (e *Engine) MeshBuffer() *Buffer {
	return &e.solid
}

// LineBuffer returns the edge-line position buffer.
func (e *Engine) LineBuffer() *Buffer {
	return &e.lines
}

// EdgeIndices returns the static line-segment pairs, length N(N-1).
func (e *Engine) EdgeIndices() []uint32 {
	if e.base == nil {
		return nil
	}
	return e.base.Edges()
}

// publish mirrors the mesh buffer into the line buffer and flags both.
func (e *Engine) publish() {
	copy(e.lines.positions, e.solid.positions)
	e.solid.markDirty()
	e.lines.markDirty()
}

func (e *Engine) stepAmbient(t float32) {
	e.parallel(func(lo, hi int) (float32, float32) {
		e.ambientRange(lo, hi, t)
		return 0, 0
	})
}

func (e *Engine) ambientRange(lo, hi int, t float32) {
	strength := e.ambient.Strength
	out := e.solid.positions
	for i := lo; i < hi; i++ {
		p := e.base.Position(i)
		dist := p.Length()
		n := e.field.Sample(p, t)
		math.Put(out, i, p.Add(p.Scale(n*strength).Scale(dist)))
	}
}

func (e *Engine) stepRipple(r *Ripple, elapsed float32) (maxMag, maxEnv float32) {
	return e.parallel(func(lo, hi int) (float32, float32) {
		return e.rippleRange(r, lo, hi, elapsed)
	})
}

func (e *Engine) rippleRange(r *Ripple, lo, hi int, elapsed float32) (maxMag, maxEnv float32) {
	out := e.solid.positions
	for i := lo; i < hi; i++ {
		p := e.base.Position(i)
		d := r.distances[i]

		if env := Envelope(r.Params, d, elapsed); env > maxEnv {
			maxEnv = env
		}

		mag, arrived := Magnitude(r.Params, d, elapsed)
		if !arrived {
			math.Put(out, i, p)
			continue
		}
		if a := abs(mag); a > maxMag {
			maxMag = a
		}
		math.Put(out, i, p.Add(e.base.Normal(i).Scale(mag)))
	}
	return maxMag, maxEnv
}

// parallel runs fn over [0, N) in contiguous chunks and reduces the two
// returned maxima. Chunks write disjoint buffer ranges.
func (e *Engine) parallel(fn func(lo, hi int) (float32, float32)) (float32, float32) {
	n := e.base.VertexCount()
	workers := e.workers
	if limit := n / minChunk; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		return fn(0, n)
	}

	chunk := (n + workers - 1) / workers
	results := make([][2]float32, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := min(lo+chunk, n)
		g.Go(func() error {
			a, b := fn(lo, hi)
			results[w] = [2]float32{a, b}
			return nil
		})
	}
	_ = g.Wait()

	var a, b float32
	for _, r := range results {
		a = max(a, r[0])
		b = max(b, r[1])
	}
	return a, b
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
