// Package config handles pulsemesh configuration loading and management.
package config

import (
	"fmt"
	"math"

	"github.com/Faultbox/pulsemesh/internal/deform"
	"github.com/Faultbox/pulsemesh/internal/mesh"
)

// Config holds all settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Ambient  AmbientConfig  `yaml:"ambient"`
	Ripple   RippleConfig   `yaml:"ripple"`
	Engine   EngineConfig   `yaml:"engine"`
	Stream   StreamConfig   `yaml:"stream"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display settings for the viewer.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	Headless   bool `yaml:"headless"` // no window; drive the engine from a ticker
	FPSLimit   int  `yaml:"fps_limit"`
}

// MeshConfig holds demo geometry settings.
type MeshConfig struct {
	Shape     string  `yaml:"shape"`    // octahedron or sphere
	Size      float32 `yaml:"size"`     // circumradius of the generated shape
	Vertices  int     `yaml:"vertices"` // sphere only
	File      string  `yaml:"file"`     // YAML or JSON buffers; overrides shape
	PointSize float32 `yaml:"point_size"`
}

// AmbientConfig holds breathing distortion settings.
type AmbientConfig struct {
	Strength  float32 `yaml:"strength"`
	Scale     float32 `yaml:"scale"`
	TimeScale float32 `yaml:"time_scale"`
	Backend   string  `yaml:"backend"` // simplex or perlin
	Seed      int64   `yaml:"seed"`
}

// Params converts the section into engine parameters.
func (a AmbientConfig) Params() deform.AmbientParams {
	return deform.AmbientParams{
		Strength:  a.Strength,
		Scale:     a.Scale,
		TimeScale: a.TimeScale,
		Backend:   a.Backend,
		Seed:      a.Seed,
	}
}

// RippleConfig holds the ripple wave constants.
type RippleConfig struct {
	Speed     float32 `yaml:"speed"`
	Frequency float32 `yaml:"frequency"`
	Damping   float32 `yaml:"damping"`
	Amplitude float32 `yaml:"amplitude"`
	Falloff   float32 `yaml:"falloff"`
}

// Params converts the section into engine parameters.
func (r RippleConfig) Params() deform.RippleParams {
	return deform.RippleParams{
		Speed:     r.Speed,
		Frequency: r.Frequency,
		Damping:   r.Damping,
		Amplitude: r.Amplitude,
		Falloff:   r.Falloff,
	}
}

// EngineConfig holds deformation engine settings.
type EngineConfig struct {
	Workers         int     `yaml:"workers"`
	SettleThreshold float32 `yaml:"settle_threshold"` // 0 keeps ripples running until stopped
	RandomSeed      int64   `yaml:"random_seed"`      // seed for random ripple origins
	HotReload       bool    `yaml:"hot_reload"`       // watch the config file for tuning changes
}

// StreamConfig holds websocket stream server settings.
type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	FPS     int    `yaml:"fps"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // console or json
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   60,
		},
		Mesh: MeshConfig{
			Shape:     "octahedron",
			Size:      1,
			Vertices:  162,
			PointSize: 6,
		},
		Ambient: AmbientConfig{
			Strength:  0.1,
			Scale:     0.2,
			TimeScale: 0.4,
			Backend:   "simplex",
		},
		Ripple: RippleConfig{
			Speed:     6.0,
			Frequency: 4.0,
			Damping:   1.2,
			Amplitude: 0.8,
			Falloff:   0.6,
		},
		Engine: EngineConfig{
			Workers:         1,
			SettleThreshold: 1e-4,
		},
		Stream: StreamConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8080",
			FPS:     30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
			Format:  "console",
		},
	}
}

// Validate checks values that would otherwise fail deep inside the engine or
// viewer.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics: invalid size %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.FPSLimit < 0 {
		return fmt.Errorf("graphics.fps_limit: must not be negative, got %d", c.Graphics.FPSLimit)
	}
	if !positive(c.Mesh.Size) {
		return fmt.Errorf("mesh.size: must be positive, got %v", c.Mesh.Size)
	}
	if c.Mesh.File == "" {
		switch c.Mesh.Shape {
		case "", "octahedron":
		case "sphere":
			if c.Mesh.Vertices < 1 || c.Mesh.Vertices > mesh.MaxVertices {
				return fmt.Errorf("mesh.vertices: must be in [1, %d], got %d", mesh.MaxVertices, c.Mesh.Vertices)
			}
		default:
			return fmt.Errorf("mesh.shape: unknown shape %q", c.Mesh.Shape)
		}
	}

	// same checks the engine applies, in field order
	if err := c.Ripple.Params().Validate(); err != nil {
		return err
	}
	if err := c.Ambient.Params().Validate(); err != nil {
		return err
	}

	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers: must be at least 1, got %d", c.Engine.Workers)
	}
	if t := float64(c.Engine.SettleThreshold); t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("engine.settle_threshold: must be finite and non-negative, got %v", c.Engine.SettleThreshold)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if c.Stream.Enabled && c.Stream.FPS <= 0 {
		return fmt.Errorf("stream.fps: must be positive, got %d", c.Stream.FPS)
	}
	return nil
}

func positive(v float32) bool {
	f := float64(v)
	return f > 0 && !math.IsInf(f, 1)
}
