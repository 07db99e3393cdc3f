// Package main is the entry point for the pulsemesh viewer and stream server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/pulsemesh/internal/app"
	"github.com/Faultbox/pulsemesh/internal/config"
	"github.com/Faultbox/pulsemesh/internal/deform"
	"github.com/Faultbox/pulsemesh/internal/logger"
	"github.com/Faultbox/pulsemesh/internal/stream"
	"github.com/Faultbox/pulsemesh/internal/viewer"
)

const defaultHeadlessFPS = 60

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if path := config.DumpPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== pulsemesh ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("pulsemesh stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("pulsemesh closed normally")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := app.BuildMesh(cfg)
	if err != nil {
		return fmt.Errorf("building mesh: %w", err)
	}
	logger.Info("mesh ready",
		zap.String("source", meshSource(cfg)),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("edges", len(m.Edges())/2),
	)

	clock := deform.NewStopwatch()
	engine, err := deform.New(app.EngineOptions(cfg, logger.Named("deform"), clock)...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	if err := engine.SetMesh(m); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	var loopOpts []app.LoopOption

	if cfg.Stream.Enabled {
		srv, err := stream.New(logger.Named("stream"), m.VertexCount(), engine.EdgeIndices())
		if err != nil {
			return err
		}
		loopOpts = append(loopOpts,
			app.WithCommands(srv.Commands()),
			app.WithPublisher(srv, cfg.Stream.FPS),
		)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Stream.Addr)
		})
	}

	if path := config.ResolvedPath(); cfg.Engine.HotReload && path != "" {
		reloads := make(chan *config.Config, 1)
		loopOpts = append(loopOpts, app.WithReloads(reloads))
		watchLog := logger.Named("config")
		g.Go(func() error {
			return config.Watch(ctx, path, func(next *config.Config, err error) {
				if err != nil {
					watchLog.Warn("config reload failed", zap.String("path", path), zap.Error(err))
					return
				}
				// keep only the newest config if the loop has not caught up
				select {
				case <-reloads:
				default:
				}
				reloads <- next
			})
		})
	} else if cfg.Engine.HotReload {
		logger.Warn("hot reload enabled but no config file found")
	}

	loop := app.NewLoop(logger.Named("loop"), engine, clock, loopOpts...)

	// The viewer stays on the main goroutine, which owns the GL context
	var loopErr error
	if cfg.Graphics.Headless {
		fps := cfg.Graphics.FPSLimit
		if fps == 0 {
			fps = defaultHeadlessFPS
		}
		loopErr = app.RunHeadless(ctx, loop, fps)
	} else {
		loopErr = runViewer(ctx, cfg, loop)
	}

	stop()
	if err := g.Wait(); err != nil && loopErr == nil {
		loopErr = err
	}
	return loopErr
}

func runViewer(ctx context.Context, cfg *config.Config, loop *app.Loop) error {
	v, err := viewer.New(cfg, loop)
	if err != nil {
		return err
	}
	defer v.Close()
	return v.Run(ctx)
}

func meshSource(cfg *config.Config) string {
	if cfg.Mesh.File != "" {
		return cfg.Mesh.File
	}
	return cfg.Mesh.Shape
}
