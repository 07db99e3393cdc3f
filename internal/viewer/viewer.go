// Package viewer shows the deforming mesh in an SDL2 window and maps keys to
// ripple and reset requests.
package viewer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/pulsemesh/internal/app"
	"github.com/Faultbox/pulsemesh/internal/config"
	"github.com/Faultbox/pulsemesh/internal/engine/camera"
	"github.com/Faultbox/pulsemesh/internal/engine/debug"
	"github.com/Faultbox/pulsemesh/internal/engine/input"
	"github.com/Faultbox/pulsemesh/internal/engine/picking"
	"github.com/Faultbox/pulsemesh/internal/engine/renderer"
	"github.com/Faultbox/pulsemesh/internal/engine/window"
	"github.com/Faultbox/pulsemesh/internal/logger"
	"github.com/Faultbox/pulsemesh/internal/stream"
)

const (
	title = "pulsemesh"

	// pickRadius is how close, in screen points, a click must land to a vertex.
	pickRadius = 24

	screenshotDir = "screenshots"
)

// Viewer is the windowed front end.
type Viewer struct {
	cfg      config.GraphicsConfig
	log      *zap.Logger
	loop     *app.Loop
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *debug.ScreenshotCapture
	running  bool
	capture  bool // save the next frame before it is presented
}

// New opens the window and uploads the mesh topology of the loop's engine.
func New(cfg *config.Config, loop *app.Loop) (*Viewer, error) {
	v := &Viewer{
		cfg:  cfg.Graphics,
		log:  logger.Named("viewer"),
		loop: loop,
	}

	m := loop.Engine().Mesh()
	if m == nil {
		return nil, fmt.Errorf("viewer needs a mesh")
	}

	radius := m.Radius()
	if radius <= 0 {
		radius = 1
	}

	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
		Samples:    4,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer needs the GL context the window just created
	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:     width,
		Height:    height,
		PointSize: cfg.Mesh.PointSize,
	}, renderer.Geometry{
		VertexCount: m.VertexCount(),
		Edges:       loop.Engine().EdgeIndices(),
		Triangles:   m.Triangles(),
		RestRadius:  radius,
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.New()
	v.camera = camera.NewOrbitCamera(radius)
	v.shots = debug.NewScreenshotCapture(screenshotDir, title)

	v.log.Info("viewer initialized",
		zap.Int("vertices", m.VertexCount()),
		zap.Int("edges", len(loop.Engine().EdgeIndices())/2),
	)
	return v, nil
}

// Run draws frames until the window closes, Esc is pressed or ctx ends.
func (v *Viewer) Run(ctx context.Context) error {
	v.running = true

	var minFrame time.Duration
	if !v.cfg.VSync && v.cfg.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.cfg.FPSLimit)
	}

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting frame loop")

	for v.running {
		if ctx.Err() != nil {
			break
		}

		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			break
		}
		v.handleEvents()

		mode, err := v.loop.Step()
		if err != nil {
			return fmt.Errorf("update error: %w", err)
		}

		e := v.loop.Engine()
		if lines := e.LineBuffer(); lines.Dirty() {
			v.renderer.Upload(lines.Positions())
			lines.MarkClean()
			e.MeshBuffer().MarkClean()
		}

		v.camera.Update(dt)
		v.renderer.Draw(v.camera.ViewProjection(v.renderer.Aspect()))
		if v.capture {
			v.screenshot()
			v.capture = false
		}
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			stats := e.Stats()
			v.window.SetTitle(fmt.Sprintf("%s  %d fps  %s", title, frameCount, mode))
			v.log.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("mode", mode.String()),
				zap.Int("ripple_origin", stats.RippleOrigin),
				zap.Float32("max_distortion", stats.MaxDistortion),
			)
			frameCount = 0
			fpsTimer = time.Now()
		}

		if minFrame > 0 {
			if spent := time.Since(now); spent < minFrame {
				time.Sleep(minFrame - spent)
			}
		}
	}

	v.log.Info("frame loop stopped", zap.Uint64("frames", v.loop.Frames()))
	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventMouseDrag:
			v.camera.HandleDrag(float32(event.DX), float32(event.DY))
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.Wheel)
		case input.EventClick:
			v.rippleAt(event.MouseX, event.MouseY)
		case input.EventKeyDown:
			v.handleAction(input.ActionFor(event.Key))
		}
	}
}

func (v *Viewer) handleAction(action input.Action) {
	var cmd stream.Command
	switch action {
	case input.ActionQuit:
		v.running = false
		return
	case input.ActionToggleHull:
		v.renderer.ShowHull = !v.renderer.ShowHull
		return
	case input.ActionToggleSpin:
		v.camera.Spinning = !v.camera.Spinning
		return
	case input.ActionScreenshot:
		v.capture = true
		return
	case input.ActionRipple:
		cmd = stream.Command{Kind: stream.CommandRipple, Origin: -1}
	case input.ActionReset:
		cmd = stream.Command{Kind: stream.CommandReset, Origin: -1}
	case input.ActionStopRipple:
		cmd = stream.Command{Kind: stream.CommandStop, Origin: -1}
	default:
		return
	}
	if err := v.loop.Apply(cmd); err != nil {
		v.log.Warn("key action rejected", zap.String("kind", string(cmd.Kind)), zap.Error(err))
	}
}

// rippleAt starts a ripple at the vertex drawn under a click, if any.
func (v *Viewer) rippleAt(mouseX, mouseY int) {
	winW, _ := v.window.Size()
	fbW, fbH := v.renderer.Viewport()
	scale := float32(1)
	if winW > 0 {
		scale = float32(fbW) / float32(winW)
	}

	origin, ok := picking.NearestVertex(
		v.loop.Engine().LineBuffer().Positions(),
		v.camera.ViewProjection(v.renderer.Aspect()),
		float32(mouseX)*scale, float32(mouseY)*scale,
		float32(fbW), float32(fbH),
		pickRadius*scale,
	)
	if !ok {
		return
	}
	if err := v.loop.Apply(stream.Command{Kind: stream.CommandRipple, Origin: origin}); err != nil {
		v.log.Warn("click ripple rejected", zap.Int("origin", origin), zap.Error(err))
	}
}

func (v *Viewer) screenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	path, err := v.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

// Close releases the renderer and window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
