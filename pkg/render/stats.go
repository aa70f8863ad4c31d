package render

import (
	"math"
	"time"
)

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Callbacks     uint64
	Frames        uint64
	ProcessErrors uint64
	NonFinite     uint64
	ChunkedBlocks uint64
	ShortBlocks   uint64
	OutputEvents  uint64
	OverBudget    uint64
	Panics        uint64
	LastDuration  time.Duration
	MaxDuration   time.Duration
	// Peaks holds the absolute peak of each channel since the previous
	// Stats call.
	Peaks []float32
}

// Stats returns the current counters and resets the held peaks.
// Safe to call from any goroutine while Render runs.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Callbacks:     b.callbacks.Load(),
		Frames:        b.frames.Load(),
		ProcessErrors: b.processErrors.Load(),
		NonFinite:     b.nonFinite.Load(),
		ChunkedBlocks: b.chunked.Load(),
		ShortBlocks:   b.short.Load(),
		OutputEvents:  b.outputEvents.Load(),
		OverBudget:    b.overBudget.Load(),
		Panics:        b.panics.Load(),
		LastDuration:  time.Duration(b.lastNanos.Load()),
		MaxDuration:   time.Duration(b.maxNanos.Load()),
		Peaks:         make([]float32, len(b.peaks)),
	}
	for ch := range b.peaks {
		s.Peaks[ch] = math.Float32frombits(b.peaks[ch].Swap(0))
	}
	return s
}

// Healthy reports whether the plugin rendered every block without errors,
// non-finite output or panics.
func (s Stats) Healthy() bool {
	return s.ProcessErrors == 0 && s.NonFinite == 0 && s.Panics == 0
}

// Seconds returns the rendered duration at sampleRate.
func (s Stats) Seconds(sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(s.Frames) / sampleRate
}
