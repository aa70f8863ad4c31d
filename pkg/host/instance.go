// Package host drives a single CLAP plugin through its lifecycle.
//
// An Instance is the main-thread half of a plugin: creation, activation,
// deactivation and destruction. Activation returns a Processor, the
// audio-thread half, which owns the process block and is the only way to
// render. The two halves share nothing mutable except the processing flag.
package host

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/debug"
)

const clapDefaultEventArena = clap.DefaultEventArena

// Instance is a created plugin. Its methods must be called from the main thread.
type Instance struct {
	plugin   *clap.Plugin
	proc     *Processor
	state    State
	requests clap.Request
	opts     options
	log      *debug.Logger
	tid      int
}

// New creates and initializes the plugin identified by id from bundle b.
func New(b *clap.Bundle, id string, info *clap.HostInfo, opts ...Option) (*Instance, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = debug.Default()
	}
	log = log.Named("host").With(zap.String("plugin", id))

	f, ok := b.Factory()
	if !ok {
		return nil, fmt.Errorf("%w: %s", clap.ErrFactoryMissing, b.Path())
	}

	d, err := clap.FindDescriptor(f, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", clap.ErrConstruction, err)
	}

	p, err := clap.Create(f, d, info)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		plugin: p,
		state:  StateCreated,
		opts:   o,
		log:    log,
	}
	if o.threadCheck {
		inst.tid = osThreadID()
	}

	log.Debug("plugin created", zap.String("name", d.Name()), zap.String("version", d.Version()))
	return inst, nil
}

// Descriptor returns the descriptor of the plugin.
func (i *Instance) Descriptor() clap.Descriptor {
	return i.plugin.Descriptor()
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	if i.state == StateActivated && i.proc.processing.Load() {
		return StateProcessing
	}
	return i.state
}

// Processor returns the processor of the current activation, or nil.
func (i *Instance) Processor() *Processor {
	return i.proc
}

// Activate configures the plugin for cfg and returns the processor that
// renders with it. Only valid from the created state.
func (i *Instance) Activate(cfg AudioConfig) (*Processor, error) {
	if err := i.checkThread("activate"); err != nil {
		return nil, err
	}
	if i.state != StateCreated {
		return nil, fmt.Errorf("%w: activate from %s", clap.ErrIllegalState, i.State())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	block, err := clap.NewProcessBlock(i.opts.inputs, i.opts.outputs, cfg.MaxFrames, i.opts.eventArena)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", clap.ErrActivation, err)
	}
	// Touch every page now so the first callback does not fault them in.
	for ch := 0; ch < block.NumOutputs(); ch++ {
		clear(block.Output(ch))
	}

	if !i.plugin.Activate(cfg.SampleRate, cfg.MinFrames, cfg.MaxFrames) {
		block.Free()
		return nil, fmt.Errorf("%w: plugin refused %.0f Hz, %d..%d frames",
			clap.ErrActivation, cfg.SampleRate, cfg.MinFrames, cfg.MaxFrames)
	}

	i.proc = newProcessor(i.plugin, block, cfg)
	i.state = StateActivated
	i.log.Info("plugin activated",
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Uint32("min_frames", cfg.MinFrames),
		zap.Uint32("max_frames", cfg.MaxFrames))
	return i.proc, nil
}

// Deactivate ends the activation that produced p, stopping processing first
// when needed. No callback may be running on p.
func (i *Instance) Deactivate(p *Processor) error {
	if err := i.checkThread("deactivate"); err != nil {
		return err
	}
	if p == nil || p != i.proc || i.state != StateActivated {
		return fmt.Errorf("%w: deactivate from %s with a foreign or stale processor", clap.ErrIllegalState, i.State())
	}

	p.StopProcessing()
	i.plugin.Deactivate()
	p.release()

	i.proc = nil
	i.state = StateCreated
	i.log.Info("plugin deactivated")
	return nil
}

// Destroy releases the plugin, deactivating it first when needed. It always
// succeeds and may be called more than once.
func (i *Instance) Destroy() {
	if i.state == StateUnloaded {
		return
	}
	if err := i.checkThread("destroy"); err != nil {
		i.log.Warn("destroying off the main thread", zap.Error(err))
	}
	if i.proc != nil {
		i.proc.StopProcessing()
		i.plugin.Deactivate()
		i.proc.release()
		i.proc = nil
	}
	i.plugin.Destroy()
	i.state = StateUnloaded
	i.log.Debug("plugin destroyed")
}

// ServiceMainThread collects the requests the plugin raised since the last
// call and runs on_main_thread when a callback was requested. It returns the
// collected requests.
func (i *Instance) ServiceMainThread() (clap.Request, error) {
	if i.state == StateUnloaded {
		return 0, nil
	}
	if err := i.checkThread("on_main_thread"); err != nil {
		return 0, err
	}

	r := i.plugin.Host().TakeRequests()
	if r == 0 {
		return 0, nil
	}
	i.requests |= r

	if r.Has(clap.RequestCallback) {
		i.plugin.OnMainThread()
	}
	if r.Has(clap.RequestRestart) {
		i.log.Warn("plugin requested a restart; not supported")
	}
	if r.Has(clap.RequestProcess) {
		i.log.Debug("plugin requested processing")
	}
	return r, nil
}

// Requests returns every request the plugin raised and ServiceMainThread
// collected over the lifetime of the instance.
func (i *Instance) Requests() clap.Request {
	return i.requests
}

var errWrongThread = errors.New("called off the main thread")

func (i *Instance) checkThread(op string) error {
	if !i.opts.threadCheck || i.tid == 0 {
		return nil
	}
	if tid := osThreadID(); tid != i.tid {
		return fmt.Errorf("%w: %s %w (thread %d, main %d)", clap.ErrIllegalState, op, errWrongThread, tid, i.tid)
	}
	return nil
}
