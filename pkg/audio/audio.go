// Package audio defines the contract between the host and an audio server.
//
// A Server owns the realtime thread. The host registers its output ports,
// hands over a ProcessFunc with Activate and from then on only waits for Done
// or calls Deactivate.
package audio

// ProcessFunc renders nframes samples into each of outputs. It runs on the
// server's realtime thread and must not allocate, lock or block. Returning
// false asks the server to stop calling it.
type ProcessFunc func(nframes uint32, outputs [][]float32) bool

// Server is a source of realtime process callbacks.
type Server interface {
	// SampleRate returns the server's sample rate in Hz.
	SampleRate() float64
	// BufferSize returns the nominal number of frames per callback.
	BufferSize() uint32
	// RegisterOutputs creates one output port per name. It must be called
	// before Activate.
	RegisterOutputs(names ...string) error
	// Activate publishes fn and starts callbacks. Everything written before
	// Activate is visible to fn.
	Activate(fn ProcessFunc) error
	// Deactivate stops callbacks and returns once none is running.
	Deactivate() error
	// Done is closed when the server stops on its own.
	Done() <-chan struct{}
	// Close releases the server. It deactivates first when needed.
	Close() error
}

// DefaultPorts are the output port names used when none are configured.
var DefaultPorts = []string{"out_l", "out_r"}

// XrunCounter is implemented by servers that count missed deadlines.
type XrunCounter interface {
	Xruns() uint64
}
