package host

import (
	"fmt"

	"github.com/justyntemme/jackclap/pkg/clap"
)

// State is the lifecycle state of a plugin instance.
type State int

const (
	// StateUnloaded means the instance was destroyed.
	StateUnloaded State = iota
	// StateCreated means the plugin is initialized but not activated.
	StateCreated
	// StateActivated means the plugin is configured for an audio setup.
	StateActivated
	// StateProcessing means the plugin may be asked to render.
	StateProcessing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateCreated:
		return "created"
	case StateActivated:
		return "activated"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AudioConfig is the audio setup a plugin is activated with.
type AudioConfig struct {
	SampleRate float64
	MinFrames  uint32
	MaxFrames  uint32
}

// Validate checks the configuration against what activation accepts.
func (c AudioConfig) Validate() error {
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate %v must be positive", clap.ErrActivation, c.SampleRate)
	}
	if c.MinFrames < 1 {
		return fmt.Errorf("%w: min frames must be at least 1", clap.ErrActivation)
	}
	if c.MinFrames > c.MaxFrames {
		return fmt.Errorf("%w: min frames %d exceeds max frames %d", clap.ErrActivation, c.MinFrames, c.MaxFrames)
	}
	if c.MaxFrames > clap.MaxFramesLimit {
		return fmt.Errorf("%w: max frames %d exceeds %d", clap.ErrActivation, c.MaxFrames, clap.MaxFramesLimit)
	}
	return nil
}

// Contains reports whether a block of n frames may be handed to the plugin.
func (c AudioConfig) Contains(n uint32) bool {
	return n >= c.MinFrames && n <= c.MaxFrames
}
