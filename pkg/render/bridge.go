// Package render bridges an audio server's process callback to an activated
// plugin.
//
// Render runs on the server's realtime thread. It never allocates, locks,
// logs or makes a blocking call; everything it observes goes into atomic
// counters read back with Stats from another thread.
package render

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/host"
)

// Renderer is the audio-thread side of an activated plugin. *host.Processor
// implements it.
type Renderer interface {
	Config() host.AudioConfig
	NumOutputs() int
	Process(frames uint32) clap.Status
	Output(ch int) []float32
	EventsPushed() uint32
}

// Bridge adapts a Renderer to the server callback.
type Bridge struct {
	r        Renderer
	cfg      host.AudioConfig
	channels int
	budget   float64 // fraction of the block period a callback may take
	timing   bool

	callbacks     atomic.Uint64
	frames        atomic.Uint64
	processErrors atomic.Uint64
	nonFinite     atomic.Uint64
	chunked       atomic.Uint64
	short         atomic.Uint64
	outputEvents  atomic.Uint64
	overBudget    atomic.Uint64
	panics        atomic.Uint64
	lastNanos     atomic.Int64
	maxNanos      atomic.Int64
	peaks         []atomic.Uint32
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithBudget sets the share of the block period a callback may use before it
// is counted as over budget. The default is 1.
func WithBudget(fraction float64) Option {
	return func(b *Bridge) {
		if fraction > 0 {
			b.budget = fraction
		}
	}
}

// WithoutTiming disables callback duration measurement.
func WithoutTiming() Option {
	return func(b *Bridge) {
		b.timing = false
	}
}

// New creates a bridge for r. r must be processing before the first Render.
func New(r Renderer, opts ...Option) *Bridge {
	b := &Bridge{
		r:        r,
		cfg:      r.Config(),
		channels: r.NumOutputs(),
		budget:   1,
		timing:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.peaks = make([]atomic.Uint32, b.channels)
	return b
}

// Channels returns the number of channels the plugin renders.
func (b *Bridge) Channels() int {
	return b.channels
}

// Render fills the first n samples of every output with plugin audio and
// leaves the rest of each slice untouched. Outputs beyond the plugin's
// channel count get silence. It always asks the server to continue.
func (b *Bridge) Render(n uint32, outs [][]float32) bool {
	var start time.Time
	if b.timing {
		start = time.Now()
	}
	defer b.recoverPanic(n, outs)

	b.callbacks.Add(1)
	b.frames.Add(uint64(n))
	if n > b.cfg.MaxFrames {
		b.chunked.Add(1)
	}

	for offset := uint32(0); offset < n; {
		chunk := min(n-offset, b.cfg.MaxFrames)
		b.renderChunk(offset, chunk, outs)
		offset += chunk
	}

	if b.timing {
		b.recordDuration(n, time.Since(start))
	}
	return true
}

func (b *Bridge) renderChunk(offset, chunk uint32, outs [][]float32) {
	frames := chunk
	// Unreachable with MinFrames 1; a larger minimum loses continuity.
	if frames < b.cfg.MinFrames {
		frames = b.cfg.MinFrames
		b.short.Add(1)
	}

	status := b.r.Process(frames)
	ok := status.OK()
	if ok {
		b.outputEvents.Add(uint64(b.r.EventsPushed()))
	} else {
		b.processErrors.Add(1)
	}

	for ch, out := range outs {
		end := min(int(offset+chunk), len(out))
		if int(offset) >= end {
			continue
		}
		dst := out[offset:end]
		if !ok || ch >= b.channels {
			clear(dst)
			continue
		}
		b.copyChannel(ch, dst, b.r.Output(ch))
	}
}

// copyChannel copies src into dst, zeroing non-finite samples, and raises the
// channel's held peak.
func (b *Bridge) copyChannel(ch int, dst, src []float32) {
	var peak float32
	var bad uint64
	for i := range dst {
		v := src[i]
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
			bad++
		}
		dst[i] = v
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if bad > 0 {
		b.nonFinite.Add(bad)
	}

	p := &b.peaks[ch]
	bits := math.Float32bits(peak)
	for {
		old := p.Load()
		if math.Float32frombits(old) >= peak || p.CompareAndSwap(old, bits) {
			return
		}
	}
}

func (b *Bridge) recordDuration(n uint32, d time.Duration) {
	nanos := int64(d)
	b.lastNanos.Store(nanos)
	for {
		old := b.maxNanos.Load()
		if nanos <= old || b.maxNanos.CompareAndSwap(old, nanos) {
			break
		}
	}
	period := float64(n) / b.cfg.SampleRate * float64(time.Second)
	if float64(nanos) > period*b.budget {
		b.overBudget.Add(1)
	}
}

// recoverPanic keeps a panic in the plugin path from unwinding into the
// server's thread. The block is replaced by silence.
func (b *Bridge) recoverPanic(n uint32, outs [][]float32) {
	if r := recover(); r != nil {
		b.panics.Add(1)
		for _, out := range outs {
			clear(out[:min(int(n), len(out))])
		}
	}
}
