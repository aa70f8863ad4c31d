package host

import "github.com/justyntemme/jackclap/pkg/debug"

// Option configures an Instance.
type Option func(*options)

type options struct {
	logger      *debug.Logger
	threadCheck bool
	eventArena  int
	inputs      int
	outputs     int
}

func defaultOptions() options {
	return options{
		eventArena: clapDefaultEventArena,
		inputs:     2,
		outputs:    2,
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *debug.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithThreadCheck confines main-thread operations to the OS thread that
// created the instance. Violations fail with ErrIllegalState.
func WithThreadCheck() Option {
	return func(o *options) {
		o.threadCheck = true
	}
}

// WithEventArena sets the size in bytes of the output event arena.
func WithEventArena(size int) Option {
	return func(o *options) {
		if size >= 0 {
			o.eventArena = size
		}
	}
}

// WithChannels sets the silent input and rendered output channel counts.
func WithChannels(inputs, outputs int) Option {
	return func(o *options) {
		o.inputs = inputs
		o.outputs = outputs
	}
}
