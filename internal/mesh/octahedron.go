package mesh

import "fmt"

// Octahedron builds a regular octahedron of the given circumradius centred on
// the origin. Vertex normals point radially outward.
func Octahedron(size float32) (*Mesh, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("octahedron size must be positive, got %v", size)
	}
	positions := []float32{
		size, 0, 0,
		-size, 0, 0,
		0, size, 0,
		0, -size, 0,
		0, 0, size,
		0, 0, -size,
	}
	normals := []float32{
		1, 0, 0,
		-1, 0, 0,
		0, 1, 0,
		0, -1, 0,
		0, 0, 1,
		0, 0, -1,
	}
	// Counter-clockwise when viewed from outside
	triangles := []uint32{
		0, 2, 4,
		4, 2, 1,
		1, 2, 5,
		5, 2, 0,
		4, 3, 0,
		1, 3, 4,
		5, 3, 1,
		0, 3, 5,
	}
	return NewIndexed(positions, normals, triangles)
}
