package deform

import (
	"go.uber.org/zap"

	"github.com/Faultbox/pulsemesh/internal/noise"
)

// DefaultSettleThreshold is the envelope below which a ripple is considered
// finished.
const DefaultSettleThreshold = 1e-4

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock sets the clock used to timestamp ripples. Defaults to a Stopwatch
// started in New.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithAmbient sets the breathing parameters.
func WithAmbient(p AmbientParams) Option {
	return func(e *Engine) { e.ambient = p }
}

// WithRipple sets the parameters used by CreateRipple.
func WithRipple(p RippleParams) Option {
	return func(e *Engine) { e.rippleParams = p }
}

// WithNoiseSource replaces the backend named in AmbientParams.
func WithNoiseSource(src noise.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithSettleThreshold stops a ripple automatically once its envelope drops
// below threshold at every vertex. Zero keeps ripples running until stopped.
func WithSettleThreshold(threshold float32) Option {
	return func(e *Engine) { e.settleThreshold = threshold }
}

// WithWorkers spreads the per-vertex loop over n goroutines.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithSeed seeds the generator behind CreateRandomRipple.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}
