package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/pulsemesh/internal/config"
	"github.com/Faultbox/pulsemesh/internal/deform"
	"github.com/Faultbox/pulsemesh/internal/mesh"
)

// BuildMesh loads mesh.file when set, otherwise generates mesh.shape.
func BuildMesh(cfg *config.Config) (*mesh.Mesh, error) {
	if cfg.Mesh.File != "" {
		return mesh.Load(cfg.Mesh.File)
	}
	switch cfg.Mesh.Shape {
	case "", "octahedron":
		return mesh.Octahedron(cfg.Mesh.Size)
	case "sphere":
		return mesh.Sphere(cfg.Mesh.Vertices, cfg.Mesh.Size)
	default:
		return nil, fmt.Errorf("unknown mesh shape %q", cfg.Mesh.Shape)
	}
}

// AmbientParams converts the ambient config section.
func AmbientParams(cfg *config.Config) deform.AmbientParams {
	return cfg.Ambient.Params()
}

// RippleParams converts the ripple config section.
func RippleParams(cfg *config.Config) deform.RippleParams {
	return cfg.Ripple.Params()
}

// EngineOptions builds the engine options described by cfg.
func EngineOptions(cfg *config.Config, log *zap.Logger, clock deform.Clock) []deform.Option {
	return []deform.Option{
		deform.WithLogger(log),
		deform.WithClock(clock),
		deform.WithAmbient(AmbientParams(cfg)),
		deform.WithRipple(RippleParams(cfg)),
		deform.WithWorkers(cfg.Engine.Workers),
		deform.WithSettleThreshold(cfg.Engine.SettleThreshold),
		deform.WithSeed(cfg.Engine.RandomSeed),
	}
}
