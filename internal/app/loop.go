// Package app drives the deformation engine from a frame loop. It applies
// ripple/reset commands, hot-reloaded tuning and stream publishing between
// ticks, so the engine itself is only ever touched from one goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/pulsemesh/internal/config"
	"github.com/Faultbox/pulsemesh/internal/deform"
	"github.com/Faultbox/pulsemesh/internal/stream"
)

// Publisher receives frames for remote viewers.
type Publisher interface {
	Publish(f stream.Frame) error
}

// Loop owns the engine for the lifetime of the program.
type Loop struct {
	log    *zap.Logger
	engine *deform.Engine
	clock  deform.Clock

	commands <-chan stream.Command
	reloads  <-chan *config.Config

	publisher    Publisher
	publishEvery float32
	lastPublish  float32
	published    bool

	frames uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithCommands drains ripple/reset requests before every tick.
func WithCommands(ch <-chan stream.Command) LoopOption {
	return func(l *Loop) { l.commands = ch }
}

// WithReloads applies reloaded configs before every tick.
func WithReloads(ch <-chan *config.Config) LoopOption {
	return func(l *Loop) { l.reloads = ch }
}

// WithPublisher sends a frame after ticks, at most fps times per second.
// fps <= 0 publishes every tick.
func WithPublisher(p Publisher, fps int) LoopOption {
	return func(l *Loop) {
		l.publisher = p
		if fps > 0 {
			l.publishEvery = 1 / float32(fps)
		}
	}
}

// NewLoop creates a loop around engine. The clock must be the one the engine
// timestamps ripples with.
func NewLoop(log *zap.Logger, engine *deform.Engine, clock deform.Clock, opts ...LoopOption) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		log:    log,
		engine: engine,
		clock:  clock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Engine returns the driven engine.
func (l *Loop) Engine() *deform.Engine {
	return l.engine
}

// Frames returns the number of completed steps.
func (l *Loop) Frames() uint64 {
	return l.frames
}

// Step drains pending input, ticks the engine at the current clock time and
// publishes the result.
func (l *Loop) Step() (deform.Mode, error) {
	l.drain()

	t := l.clock.Elapsed()
	mode, err := l.engine.Tick(t)
	if err != nil {
		return mode, fmt.Errorf("tick at %.3fs: %w", t, err)
	}
	l.frames++

	if l.publisher != nil && (!l.published || t-l.lastPublish >= l.publishEvery) {
		err := l.publisher.Publish(stream.Frame{
			Time:      t,
			Mode:      mode.String(),
			Positions: l.engine.LineBuffer().Positions(),
		})
		if err != nil {
			l.log.Warn("publish failed", zap.Error(err))
		}
		l.lastPublish = t
		l.published = true
	}
	return mode, nil
}

// Apply executes one command. Rejected commands leave the engine unchanged.
func (l *Loop) Apply(cmd stream.Command) error {
	switch cmd.Kind {
	case stream.CommandRipple:
		if cmd.Origin < 0 {
			_, err := l.engine.CreateRandomRipple()
			return err
		}
		return l.engine.CreateRipple(cmd.Origin)
	case stream.CommandReset:
		return l.engine.ResetPositions()
	case stream.CommandStop:
		l.engine.StopRipple()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Kind)
	}
}

// ApplyConfig pushes the tunable sections of cfg into the engine. Ripple
// parameters are checked before anything changes.
func (l *Loop) ApplyConfig(cfg *config.Config) error {
	ripple := RippleParams(cfg)
	if err := ripple.Validate(); err != nil {
		return err
	}
	if err := l.engine.SetAmbient(AmbientParams(cfg)); err != nil {
		return err
	}
	return l.engine.SetRippleParams(ripple)
}

func (l *Loop) drain() {
	for {
		select {
		case cmd := <-l.commands:
			if err := l.Apply(cmd); err != nil {
				l.log.Warn("command rejected",
					zap.String("kind", string(cmd.Kind)),
					zap.Int("origin", cmd.Origin),
					zap.Error(err),
				)
			}
		case cfg := <-l.reloads:
			if err := l.ApplyConfig(cfg); err != nil {
				l.log.Warn("reloaded config rejected", zap.Error(err))
				continue
			}
			l.log.Info("tuning reloaded")
		default:
			return
		}
	}
}

// RunHeadless steps the loop fps times per second until ctx is cancelled.
func RunHeadless(ctx context.Context, l *Loop, fps int) error {
	if fps <= 0 {
		return errors.New("headless loop needs a positive frame rate")
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	l.log.Info("headless loop started", zap.Int("fps", fps))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("headless loop stopped", zap.Uint64("frames", l.frames))
			return nil
		case <-ticker.C:
			if _, err := l.Step(); err != nil {
				return err
			}
		}
	}
}
