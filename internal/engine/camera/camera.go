// Package camera provides the orbit camera the viewer looks at the mesh with.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/pulsemesh/pkg/math"
)

// OrbitCamera orbits the origin.
type OrbitCamera struct {
	Distance  float32 // distance from the origin
	RotationX float32 // pitch, radians
	RotationY float32 // yaw, radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
	SpinSpeed       float32 // yaw radians per second while spinning
	Spinning        bool

	FOV float32 // vertical field of view, radians
}

// NewOrbitCamera frames a mesh of the given radius.
func NewOrbitCamera(radius float32) *OrbitCamera {
	return &OrbitCamera{
		Distance:        radius * 3.5,
		RotationX:       0.35,
		MinDistance:     radius * 1.5,
		MaxDistance:     radius * 20,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		SpinSpeed:       0.25,
		Spinning:        true,
		FOV:             math32.Pi / 4,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	sinX, cosX := math32.Sincos(c.RotationX)
	sinY, cosY := math32.Sincos(c.RotationY)
	return math.Vec3{
		X: c.Distance * cosX * sinY,
		Y: c.Distance * sinX,
		Z: c.Distance * cosX * cosY,
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), math.Vec3{}, math.Vec3{Y: 1})
}

// ViewProjection returns projection * view for a viewport aspect ratio.
func (c *OrbitCamera) ViewProjection(aspect float32) math.Mat4 {
	near := c.Distance * 0.01
	far := c.Distance * 10
	return math.Perspective(c.FOV, aspect, near, far).Mul(c.ViewMatrix())
}

// Update advances the automatic spin by dt seconds.
func (c *OrbitCamera) Update(dt float32) {
	if c.Spinning {
		c.RotationY += c.SpinSpeed * dt
	}
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = clamp(c.RotationX, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
