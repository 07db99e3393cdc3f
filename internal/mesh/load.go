package mesh

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/pulsemesh/pkg/math"
)

// ErrDegenerate is returned when a normal has to be derived for a vertex at
// the origin.
var ErrDegenerate = errors.New("vertex at origin has no radial direction")

// file is the on-disk layout. JSON documents parse too, being valid YAML.
type file struct {
	Positions []float32 `yaml:"positions"`
	Normals   []float32 `yaml:"normals"`   // optional, radial when absent
	Triangles []uint32  `yaml:"triangles"` // optional
}

// Load reads a mesh from a YAML or JSON file of flat x,y,z buffers:
//
//	positions: [1, 0, 0, 0, 1, 0, ...]
//	normals:   [1, 0, 0, 0, 1, 0, ...]
//	triangles: [0, 1, 2, ...]
//
// When normals are omitted each vertex gets the unit vector from the origin
// through it, which suits closed shapes centred on the origin.
func Load(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	normals := f.Normals
	if len(normals) == 0 {
		if normals, err = radialNormals(f.Positions); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	m, err := NewIndexed(f.Positions, normals, f.Triangles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func radialNormals(positions []float32) ([]float32, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotTriples, len(positions))
	}
	normals := make([]float32, len(positions))
	for i := 0; i < len(positions)/3; i++ {
		p := math.At(positions, i)
		if !p.IsFinite() {
			return nil, fmt.Errorf("position %d: %w", i, ErrNonFinite)
		}
		if p.Length() == 0 {
			return nil, fmt.Errorf("position %d: %w", i, ErrDegenerate)
		}
		math.Put(normals, i, p.Normalize())
	}
	return normals, nil
}
