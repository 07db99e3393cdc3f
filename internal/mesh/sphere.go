package mesh

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Sphere spreads n vertices evenly over a sphere of the given radius on a
// Fibonacci lattice. It has no triangles; the edge web is the whole picture.
func Sphere(n int, radius float32) (*Mesh, error) {
	if n < 1 || n > MaxVertices {
		return nil, fmt.Errorf("sphere vertex count must be in [1, %d], got %d", MaxVertices, n)
	}
	if !(radius > 0) || math32.IsInf(radius, 1) {
		return nil, fmt.Errorf("sphere radius must be positive, got %v", radius)
	}

	golden := math32.Pi * (3 - math32.Sqrt(5))
	positions := make([]float32, 0, 3*n)
	normals := make([]float32, 0, 3*n)
	for i := 0; i < n; i++ {
		y := 1 - 2*(float32(i)+0.5)/float32(n)
		r := math32.Sqrt(1 - y*y)
		theta := golden * float32(i)
		x, z := r*math32.Cos(theta), r*math32.Sin(theta)

		// renormalize so float32 rounding stays inside normalTolerance
		l := math32.Sqrt(x*x + y*y + z*z)
		x, y, z = x/l, y/l, z/l

		positions = append(positions, x*radius, y*radius, z*radius)
		normals = append(normals, x, y, z)
	}
	return New(positions, normals)
}
