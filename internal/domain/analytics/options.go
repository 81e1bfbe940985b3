package analytics

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithIDGenerator replaces the snapshot id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithNow replaces the clock used for CreatedAt.
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// WithPressureWeights overrides the pressure coefficients. Negative values
// are ignored.
func WithPressureWeights(w PressureWeights) Option {
	return func(e *Engine) {
		if w.Shot >= 0 && w.ShotOnTarget >= 0 && w.Corner >= 0 && w.XG >= 0 {
			e.weights = w
		}
	}
}
