// Package engine wires a plugin instance to an audio server and parks the
// main thread while the server renders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/justyntemme/jackclap/pkg/audio"
	"github.com/justyntemme/jackclap/pkg/debug"
	"github.com/justyntemme/jackclap/pkg/host"
	"github.com/justyntemme/jackclap/pkg/render"
)

// Config contains the orchestration settings.
type Config struct {
	// Ports are the output port names registered with the server.
	Ports []string
	// MainThreadInterval is how often plugin requests are serviced.
	MainThreadInterval time.Duration
	// StatsInterval is how often render statistics are logged. Zero disables.
	StatsInterval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *debug.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSession sets the session id attached to every log line. A random one
// is generated otherwise.
func WithSession(id string) Option {
	return func(e *Engine) { e.session = id }
}

// WithBridgeOptions passes options to the render bridge.
func WithBridgeOptions(opts ...render.Option) Option {
	return func(e *Engine) { e.bridgeOpts = append(e.bridgeOpts, opts...) }
}

// Engine runs one plugin instance on one audio server.
type Engine struct {
	cfg        Config
	srv        audio.Server
	inst       *host.Instance
	proc       *host.Processor
	bridge     *render.Bridge
	bridgeOpts []render.Option
	log        *debug.Logger
	session    string

	stop     chan struct{}
	stopOnce sync.Once
	running  bool
	closed   bool
}

// New creates an engine. The engine takes ownership of srv and inst; Close
// releases both.
func New(cfg Config, srv audio.Server, inst *host.Instance, opts ...Option) *Engine {
	e := &Engine{
		cfg:  cfg,
		srv:  srv,
		inst: inst,
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.session == "" {
		e.session = uuid.NewString()
	}
	if e.log == nil {
		e.log = debug.Default()
	}
	e.log = e.log.Named("engine").With(zap.String("session", e.session))
	if len(e.cfg.Ports) == 0 {
		e.cfg.Ports = audio.DefaultPorts
	}
	if e.cfg.MainThreadInterval <= 0 {
		e.cfg.MainThreadInterval = 10 * time.Millisecond
	}
	return e
}

// Session returns the session id.
func (e *Engine) Session() string {
	return e.session
}

// Start activates the plugin at the server's sample rate with the server's
// block size as the maximum, starts processing and hands the render bridge to
// the server. The minimum is 1 so every server block, short ones included,
// reaches the plugin at its own length.
func (e *Engine) Start() error {
	if e.running || e.closed {
		return errors.New("engine: already started")
	}

	bs := e.srv.BufferSize()
	cfg := host.AudioConfig{SampleRate: e.srv.SampleRate(), MinFrames: 1, MaxFrames: bs}
	proc, err := e.inst.Activate(cfg)
	if err != nil {
		return err
	}
	if err := proc.StartProcessing(); err != nil {
		return multierr.Append(err, e.inst.Deactivate(proc))
	}
	if err := e.srv.RegisterOutputs(e.cfg.Ports...); err != nil {
		return multierr.Append(fmt.Errorf("engine: %w", err), e.inst.Deactivate(proc))
	}

	e.proc = proc
	e.bridge = render.New(proc, e.bridgeOpts...)
	if e.bridge.Channels() != len(e.cfg.Ports) {
		e.log.Warn("channel count mismatch",
			zap.Int("plugin_channels", e.bridge.Channels()),
			zap.Int("ports", len(e.cfg.Ports)))
	}

	if err := e.srv.Activate(e.bridge.Render); err != nil {
		e.proc = nil
		e.bridge = nil
		return multierr.Append(fmt.Errorf("engine: %w", err), e.inst.Deactivate(proc))
	}
	e.running = true

	e.log.Info("running",
		zap.String("plugin", e.inst.Descriptor().ID()),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Uint32("block", bs),
		zap.Strings("ports", e.cfg.Ports))
	return nil
}

// Wait parks the calling goroutine, which must be the one that created the
// instance, until ctx is done, the server stops or Stop is called. Plugin
// main-thread requests are serviced meanwhile.
func (e *Engine) Wait(ctx context.Context) error {
	if !e.running {
		return errors.New("engine: not started")
	}

	service := time.NewTicker(e.cfg.MainThreadInterval)
	defer service.Stop()

	var statsC <-chan time.Time
	if e.cfg.StatsInterval > 0 {
		stats := time.NewTicker(e.cfg.StatsInterval)
		defer stats.Stop()
		statsC = stats.C
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("interrupted", zap.Error(context.Cause(ctx)))
			return nil
		case <-e.srv.Done():
			e.log.Info("audio server stopped")
			return nil
		case <-e.stop:
			return nil
		case <-service.C:
			if _, err := e.inst.ServiceMainThread(); err != nil {
				return err
			}
		case <-statsC:
			e.logStats()
		}
	}
}

// Stop makes Wait return. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Stats returns the render statistics. Zero before Start.
func (e *Engine) Stats() render.Stats {
	if e.bridge == nil {
		return render.Stats{}
	}
	return e.bridge.Stats()
}

// AudioConfig returns the audio configuration of the running plugin.
func (e *Engine) AudioConfig() host.AudioConfig {
	if e.proc == nil {
		return host.AudioConfig{}
	}
	return e.proc.Config()
}

// Xruns returns the server's xrun count when it keeps one.
func (e *Engine) Xruns() uint64 {
	if x, ok := e.srv.(audio.XrunCounter); ok {
		return x.Xruns()
	}
	return 0
}

func (e *Engine) logStats() {
	s := e.Stats()
	e.log.Info("render stats",
		zap.Uint64("callbacks", s.Callbacks),
		zap.Uint64("frames", s.Frames),
		zap.Uint64("process_errors", s.ProcessErrors),
		zap.Uint64("non_finite", s.NonFinite),
		zap.Uint64("over_budget", s.OverBudget),
		zap.Uint64("xruns", e.Xruns()),
		zap.Duration("max_callback", s.MaxDuration),
		zap.Float32s("peaks", s.Peaks))
}

// Close stops the server, then stops, deactivates and destroys the plugin and
// finally closes the server. Every step runs; errors are combined.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.Stop()

	var err error
	if e.running {
		// No callback runs once Deactivate returns.
		err = multierr.Append(err, e.srv.Deactivate())
		e.running = false
	}
	if e.proc != nil {
		e.proc.StopProcessing()
		err = multierr.Append(err, e.inst.Deactivate(e.proc))
		e.proc = nil
	}
	e.inst.Destroy()
	err = multierr.Append(err, e.srv.Close())

	s := e.Stats()
	e.log.Info("stopped",
		zap.Uint64("callbacks", s.Callbacks),
		zap.Uint64("frames", s.Frames),
		zap.Uint64("process_errors", s.ProcessErrors),
		zap.Uint64("panics", s.Panics))
	return err
}
