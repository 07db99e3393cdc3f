// Package picking maps screen positions to mesh vertices.
package picking

import (
	"github.com/Faultbox/pulsemesh/pkg/math"
)

// ScreenPoint is a projected vertex in pixel coordinates.
type ScreenPoint struct {
	X, Y  float32
	Depth float32 // NDC depth, -1 near to 1 far
}

// Project maps a world position to pixel coordinates. ok is false for points
// behind the camera.
func Project(p math.Vec3, viewProj math.Mat4, viewportW, viewportH float32) (ScreenPoint, bool) {
	clip := viewProj.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
	if clip[3] <= 0 {
		return ScreenPoint{}, false
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	return ScreenPoint{
		X:     (ndcX + 1) * 0.5 * viewportW,
		Y:     (1 - ndcY) * 0.5 * viewportH, // screen Y grows downwards
		Depth: clip[2] / clip[3],
	}, true
}

// NearestVertex returns the vertex whose projection lies within maxPixels of
// (screenX, screenY). Among candidates the one closest to the camera wins, so
// clicks land on the visible side of the mesh. positions is a flat xyz buffer.
func NearestVertex(positions []float32, viewProj math.Mat4, screenX, screenY, viewportW, viewportH, maxPixels float32) (int, bool) {
	best := -1
	var bestDepth float32
	limit := maxPixels * maxPixels

	for i := 0; i < len(positions)/3; i++ {
		sp, ok := Project(math.At(positions, i), viewProj, viewportW, viewportH)
		if !ok {
			continue
		}
		dx := sp.X - screenX
		dy := sp.Y - screenY
		if dx*dx+dy*dy > limit {
			continue
		}
		if best < 0 || sp.Depth < bestDepth {
			best = i
			bestDepth = sp.Depth
		}
	}
	return best, best >= 0
}
