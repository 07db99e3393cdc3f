// Package mesh holds the immutable reference geometry the deformation engine
// displaces: original vertex positions, unit normals and the full edge web.
package mesh

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/pulsemesh/pkg/math"
)

// MaxVertices bounds the vertex count. The edge web grows as N², so larger
// meshes would need hundreds of megabytes of line indices.
const MaxVertices = 4096

// normalTolerance is how far |normal| may stray from 1.
const normalTolerance = 1e-3

var (
	ErrEmpty            = errors.New("mesh has no vertices")
	ErrTooManyVertices  = fmt.Errorf("mesh exceeds %d vertices", MaxVertices)
	ErrLengthMismatch   = errors.New("positions and normals differ in length")
	ErrNotTriples       = errors.New("buffer length is not a multiple of 3")
	ErrNonFinite        = errors.New("non-finite coordinate")
	ErrNormalNotUnit    = errors.New("normal is not unit length")
	ErrTriangleOutRange = errors.New("triangle index out of range")
)

// Mesh is read-only after construction. Accessors return the backing slices
// directly; callers must not modify them.
type Mesh struct {
	positions []float32
	normals   []float32
	triangles []uint32
	edges     []uint32
}

// New validates and copies the given flat x,y,z buffers.
func New(positions, normals []float32) (*Mesh, error) {
	return NewIndexed(positions, normals, nil)
}

// NewIndexed is New with an optional triangle index list for the solid mesh.
func NewIndexed(positions, normals []float32, triangles []uint32) (*Mesh, error) {
	if len(positions) != len(normals) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(positions), len(normals))
	}
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotTriples, len(positions))
	}
	n := len(positions) / 3
	if n == 0 {
		return nil, ErrEmpty
	}
	if n > MaxVertices {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyVertices, n)
	}
	if len(triangles)%3 != 0 {
		return nil, fmt.Errorf("triangles: %w: %d", ErrNotTriples, len(triangles))
	}

	for i := 0; i < n; i++ {
		p := math.At(positions, i)
		nrm := math.At(normals, i)
		if !p.IsFinite() {
			return nil, fmt.Errorf("position %d: %w", i, ErrNonFinite)
		}
		if !nrm.IsFinite() {
			return nil, fmt.Errorf("normal %d: %w", i, ErrNonFinite)
		}
		if l := nrm.Length(); math32.Abs(l-1) > normalTolerance {
			return nil, fmt.Errorf("normal %d (length %.4f): %w", i, l, ErrNormalNotUnit)
		}
	}
	for i, idx := range triangles {
		if int(idx) >= n {
			return nil, fmt.Errorf("triangle index %d = %d: %w", i, idx, ErrTriangleOutRange)
		}
	}

	m := &Mesh{
		positions: append([]float32(nil), positions...),
		normals:   append([]float32(nil), normals...),
		edges:     BuildEdges(n),
	}
	if len(triangles) > 0 {
		m.triangles = append([]uint32(nil), triangles...)
	}
	return m, nil
}

// VertexCount returns N.
func (m *Mesh) VertexCount() int {
	return len(m.positions) / 3
}

// Positions returns the original positions, length 3N.
func (m *Mesh) Positions() []float32 {
	return m.positions
}

// Normals returns the vertex normals, length 3N.
func (m *Mesh) Normals() []float32 {
	return m.normals
}

// Position returns the original position of vertex i.
func (m *Mesh) Position(i int) math.Vec3 {
	return math.At(m.positions, i)
}

// Normal returns the normal of vertex i.
func (m *Mesh) Normal(i int) math.Vec3 {
	return math.At(m.normals, i)
}

// Triangles returns the solid-mesh triangle indices, or nil.
func (m *Mesh) Triangles() []uint32 {
	return m.triangles
}

// Edges returns the line-segment index list (pairs), length N(N-1).
func (m *Mesh) Edges() []uint32 {
	return m.edges
}

// Radius returns the largest distance of an original vertex from the origin.
func (m *Mesh) Radius() float32 {
	var r float32
	for i := 0; i < m.VertexCount(); i++ {
		if l := m.Position(i).Length(); l > r {
			r = l
		}
	}
	return r
}
