package host

import (
	"fmt"
	"sync/atomic"

	"github.com/justyntemme/jackclap/pkg/clap"
)

// Processor is the audio-thread half of an activated plugin. It is valid from
// Activate until the matching Deactivate.
type Processor struct {
	plugin     *clap.Plugin
	block      *clap.ProcessBlock
	cfg        AudioConfig
	processing atomic.Bool
	released   atomic.Bool
}

func newProcessor(p *clap.Plugin, b *clap.ProcessBlock, cfg AudioConfig) *Processor {
	return &Processor{plugin: p, block: b, cfg: cfg}
}

// Config returns the audio configuration of the activation.
func (p *Processor) Config() AudioConfig {
	return p.cfg
}

// Processing reports whether StartProcessing succeeded and StopProcessing has
// not been called since.
func (p *Processor) Processing() bool {
	return p.processing.Load()
}

// StartProcessing lets the plugin render. It fails with ErrIllegalState,
// changing nothing, unless the processor is activated and idle.
func (p *Processor) StartProcessing() error {
	if p == nil {
		return fmt.Errorf("%w: start processing before activation", clap.ErrIllegalState)
	}
	if p.released.Load() {
		return fmt.Errorf("%w: start processing after deactivation", clap.ErrIllegalState)
	}
	if p.processing.Load() {
		return fmt.Errorf("%w: already processing", clap.ErrIllegalState)
	}
	if !p.plugin.StartProcessing() {
		return fmt.Errorf("%w: %s", clap.ErrStart, p.plugin.Descriptor().ID())
	}
	p.processing.Store(true)
	return nil
}

// StopProcessing stops rendering. Calling it when not processing is a no-op.
func (p *Processor) StopProcessing() {
	if p == nil || p.released.Load() {
		return
	}
	if p.processing.CompareAndSwap(true, false) {
		p.plugin.StopProcessing()
	}
}

// Process renders frames samples into the output buffers. [audio-thread]
//
// Calling Process while not processing, or with a frame count outside the
// activated range, is a programming error and panics.
func (p *Processor) Process(frames uint32) clap.Status {
	if !p.processing.Load() {
		panic(fmt.Errorf("%w: process while not processing", clap.ErrIllegalState))
	}
	if !p.cfg.Contains(frames) {
		panic(fmt.Errorf("%w: %d frames outside %d..%d", clap.ErrIllegalState, frames, p.cfg.MinFrames, p.cfg.MaxFrames))
	}
	return p.plugin.Process(p.block, frames)
}

// NumOutputs returns the number of output channels.
func (p *Processor) NumOutputs() int {
	return p.block.NumOutputs()
}

// Output returns the scratch buffer of output channel ch at full capacity.
// After Process the first frames samples hold the rendered block.
func (p *Processor) Output(ch int) []float32 {
	return p.block.Output(ch)
}

// EventsPushed returns the number of events the plugin emitted during the
// last Process call.
func (p *Processor) EventsPushed() uint32 {
	return p.block.EventsPushed()
}

// SteadyTime returns the number of frames rendered since activation.
func (p *Processor) SteadyTime() int64 {
	return p.block.SteadyTime()
}

func (p *Processor) release() {
	if p.released.CompareAndSwap(false, true) {
		p.block.Free()
	}
}
