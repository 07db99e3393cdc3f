// Package renderer draws the deforming mesh with OpenGL: the full edge web as
// lines, the vertices as round points and, optionally, the faces as a
// translucent hull.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/pulsemesh/internal/engine/shader"
	"github.com/Faultbox/pulsemesh/internal/logger"
	"github.com/Faultbox/pulsemesh/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width     int
	Height    int
	PointSize float32
}

// Geometry is the static topology uploaded once.
type Geometry struct {
	VertexCount int
	Edges       []uint32 // line segment pairs
	Triangles   []uint32 // may be empty
	RestRadius  float32  // radius the colour ramp is centred on
}

var (
	lineColor  = [4]float32{0.55, 0.75, 1.0, 0.18}
	pointColor = [4]float32{0.9, 0.95, 1.0, 1.0}
	hullColor  = [4]float32{0.2, 0.35, 0.6, 0.25}
)

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	program      uint32
	uMVP         int32
	uPointSize   int32
	uRestRadius  int32
	uColor       int32
	uRoundPoints int32

	vao     uint32
	vbo     uint32
	lineEBO uint32
	triEBO  uint32

	vertexCount int32
	lineIndices int32
	triIndices  int32
	restRadius  float32

	// ShowHull draws the triangle faces under the line web.
	ShowHull bool
}

// New creates the renderer and uploads the topology. It must be called after
// the OpenGL context exists.
func New(cfg Config, geom Geometry) (*Renderer, error) {
	r := &Renderer{
		config:      cfg,
		log:         logger.Named("renderer"),
		vertexCount: int32(geom.VertexCount),
		lineIndices: int32(len(geom.Edges)),
		triIndices:  int32(len(geom.Triangles)),
		restRadius:  geom.RestRadius,
		ShowHull:    len(geom.Triangles) > 0,
	}
	if r.restRadius <= 0 {
		r.restRadius = 1
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.ClearColor(0.03, 0.03, 0.06, 1.0)
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))

	var err error
	r.program, err = shader.CompileProgram(shader.MeshVertexShader, shader.MeshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh program: %w", err)
	}
	r.uMVP = shader.MustUniform(r.program, "uMVP")
	r.uPointSize = shader.Uniform(r.program, "uPointSize")
	r.uRestRadius = shader.Uniform(r.program, "uRestRadius")
	r.uColor = shader.MustUniform(r.program, "uColor")
	r.uRoundPoints = shader.Uniform(r.program, "uRoundPoints")

	r.createBuffers(geom)

	r.log.Debug("mesh buffers created",
		zap.Int32("vertices", r.vertexCount),
		zap.Int32("line_indices", r.lineIndices),
		zap.Int32("triangle_indices", r.triIndices),
	)
	return r, nil
}

func (r *Renderer) createBuffers(geom Geometry) {
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	// Positions change every frame; the index buffers never do
	gl.GenBuffers(1, &r.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, geom.VertexCount*3*4, nil, gl.DYNAMIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
	gl.EnableVertexAttribArray(0)

	gl.GenBuffers(1, &r.lineEBO)
	if len(geom.Edges) > 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.lineEBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(geom.Edges)*4, unsafe.Pointer(&geom.Edges[0]), gl.STATIC_DRAW)
	}

	gl.GenBuffers(1, &r.triEBO)
	if len(geom.Triangles) > 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.triEBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(geom.Triangles)*4, unsafe.Pointer(&geom.Triangles[0]), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
}

// Upload replaces the vertex positions. len(positions) must be 3*VertexCount.
func (r *Renderer) Upload(positions []float32) {
	if len(positions) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(positions)*4, unsafe.Pointer(&positions[0]))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Viewport returns the framebuffer size in pixels.
func (r *Renderer) Viewport() (int, int) {
	return r.config.Width, r.config.Height
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, w, h
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Draw clears the frame and draws hull, lines and points.
func (r *Renderer) Draw(viewProj math.Mat4) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.uMVP, 1, false, viewProj.Ptr())
	gl.Uniform1f(r.uPointSize, r.config.PointSize)
	gl.Uniform1f(r.uRestRadius, r.restRadius)
	gl.BindVertexArray(r.vao)

	if r.ShowHull && r.triIndices > 0 {
		// translucent faces must not hide the lines behind them
		gl.DepthMask(false)
		r.setColor(hullColor, false)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.triEBO)
		gl.DrawElements(gl.TRIANGLES, r.triIndices, gl.UNSIGNED_INT, nil)
		gl.DepthMask(true)
	}

	if r.lineIndices > 0 {
		gl.DepthMask(false)
		r.setColor(lineColor, false)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.lineEBO)
		gl.DrawElements(gl.LINES, r.lineIndices, gl.UNSIGNED_INT, nil)
		gl.DepthMask(true)
	}

	r.setColor(pointColor, true)
	gl.DrawArrays(gl.POINTS, 0, r.vertexCount)

	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

func (r *Renderer) setColor(c [4]float32, roundPoints bool) {
	gl.Uniform4f(r.uColor, c[0], c[1], c[2], c[3])
	round := int32(0)
	if roundPoints {
		round = 1
	}
	gl.Uniform1i(r.uRoundPoints, round)
}

// Close releases GL resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	buffers := []uint32{r.vbo, r.lineEBO, r.triEBO}
	gl.DeleteBuffers(int32(len(buffers)), &buffers[0])
	if r.program != 0 {
		gl.DeleteProgram(r.program)
	}
}
