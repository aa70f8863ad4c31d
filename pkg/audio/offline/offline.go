// Package offline implements audio.Server without an audio device. A driver
// thread calls the process function back to back for a fixed duration and
// can encode the result to a WAV file.
package offline

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	jaudio "github.com/justyntemme/jackclap/pkg/audio"
	"github.com/justyntemme/jackclap/pkg/debug"
)

// Config describes an offline render.
type Config struct {
	SampleRate float64
	BufferSize uint32
	// Duration of audio to render. Zero renders until Deactivate.
	Duration time.Duration
	// Output is the WAV file path. Empty renders without writing.
	Output string
	// BitDepth of the WAV file, 16 or 24.
	BitDepth int
	// Realtime paces callbacks at the rate a sound card would.
	Realtime bool
}

// Validate checks c and fills defaults.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("offline: invalid sample rate %v", c.SampleRate)
	}
	if c.BufferSize == 0 {
		return errors.New("offline: buffer size must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("offline: negative duration %v", c.Duration)
	}
	if c.BitDepth == 0 {
		c.BitDepth = 16
	}
	if c.BitDepth != 16 && c.BitDepth != 24 {
		return fmt.Errorf("offline: unsupported bit depth %d", c.BitDepth)
	}
	return nil
}

// TotalFrames returns the number of frames the render covers, or 0 when it
// is unbounded.
func (c Config) TotalFrames() uint64 {
	return uint64(c.Duration.Seconds()*c.SampleRate + 0.5)
}

// Driver renders on a dedicated OS thread. It implements audio.Server.
type Driver struct {
	cfg   Config
	log   *debug.Logger
	names []string
	bufs  [][]float32

	mu     sync.Mutex
	active bool
	stop   chan struct{}
	exited chan struct{}
	done   chan struct{}
	once   sync.Once

	file    *os.File
	enc     *wav.Encoder
	pcm     *audio.IntBuffer
	scale   float64
	encErr  error
	frames  uint64
	summary []*debug.Summary
}

var _ jaudio.Server = (*Driver)(nil)

// New creates a driver. The WAV file, if any, is created immediately.
func New(cfg Config, log *debug.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = debug.Default()
	}
	d := &Driver{
		cfg:  cfg,
		log:  log.Named("offline"),
		done: make(chan struct{}),
	}
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("offline: %w", err)
		}
		d.file = f
	}
	return d, nil
}

// SampleRate returns the configured sample rate.
func (d *Driver) SampleRate() float64 {
	return d.cfg.SampleRate
}

// BufferSize returns the configured block size.
func (d *Driver) BufferSize() uint32 {
	return d.cfg.BufferSize
}

// RegisterOutputs allocates one buffer per output.
func (d *Driver) RegisterOutputs(names ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return errors.New("offline: outputs must be registered before activation")
	}
	if len(names) == 0 {
		names = jaudio.DefaultPorts
	}
	for range names {
		d.bufs = append(d.bufs, make([]float32, d.cfg.BufferSize))
	}
	d.names = append(d.names, names...)
	return nil
}

// Activate starts the driver thread.
func (d *Driver) Activate(fn jaudio.ProcessFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return errors.New("offline: already active")
	}
	if len(d.bufs) == 0 {
		return errors.New("offline: no outputs registered")
	}

	if d.file != nil && d.enc == nil {
		d.enc = wav.NewEncoder(d.file, int(d.cfg.SampleRate), d.cfg.BitDepth, len(d.bufs), 1)
		d.pcm = &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: len(d.bufs), SampleRate: int(d.cfg.SampleRate)},
			Data:           make([]int, int(d.cfg.BufferSize)*len(d.bufs)),
			SourceBitDepth: d.cfg.BitDepth,
		}
		d.scale = float64(int(1)<<(d.cfg.BitDepth-1) - 1)
	}
	if d.summary == nil {
		analyzer := debug.NewAudioAnalyzer()
		for range d.bufs {
			d.summary = append(d.summary, analyzer.NewSummary())
		}
	}

	d.stop = make(chan struct{})
	d.exited = make(chan struct{})
	d.active = true
	go d.run(fn, d.stop, d.exited)

	d.log.Info("rendering",
		zap.Float64("sample_rate", d.cfg.SampleRate),
		zap.Uint32("buffer_size", d.cfg.BufferSize),
		zap.Duration("duration", d.cfg.Duration),
		zap.String("output", d.cfg.Output))
	return nil
}

func (d *Driver) run(fn jaudio.ProcessFunc, stop <-chan struct{}, exited chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(exited)

	total := d.cfg.TotalFrames()
	period := time.Duration(float64(d.cfg.BufferSize) / d.cfg.SampleRate * float64(time.Second))
	next := time.Now()
	views := make([][]float32, len(d.bufs))

	for total == 0 || d.frames < total {
		select {
		case <-stop:
			return
		default:
		}

		n := d.cfg.BufferSize
		if total > 0 && total-d.frames < uint64(n) {
			n = uint32(total - d.frames)
		}
		for ch, buf := range d.bufs {
			views[ch] = buf[:n]
		}

		keepGoing := fn(n, views)
		d.consume(n)
		d.frames += uint64(n)
		if !keepGoing {
			break
		}

		if d.cfg.Realtime {
			next = next.Add(period)
			if wait := time.Until(next); wait > 0 {
				select {
				case <-stop:
					return
				case <-time.After(wait):
				}
			}
		}
	}
	d.once.Do(func() { close(d.done) })
}

// consume feeds the analyzers and the encoder with the first n frames.
func (d *Driver) consume(n uint32) {
	for ch, buf := range d.bufs {
		d.summary[ch].Add(buf[:n])
	}
	if d.enc == nil || d.encErr != nil {
		return
	}

	channels := len(d.bufs)
	data := d.pcm.Data[:int(n)*channels]
	for i := 0; i < int(n); i++ {
		for ch, buf := range d.bufs {
			data[i*channels+ch] = quantize(buf[i], d.scale)
		}
	}
	d.pcm.Data = data
	d.encErr = d.enc.Write(d.pcm)
	d.pcm.Data = d.pcm.Data[:cap(d.pcm.Data)]
}

func quantize(v float32, scale float64) int {
	s := float64(v)
	switch {
	case math.IsNaN(s):
		s = 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	if s >= 0 {
		return int(s*scale + 0.5)
	}
	return int(s*scale - 0.5)
}

// Deactivate stops the driver thread and waits for it to exit.
func (d *Driver) Deactivate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}
	close(d.stop)
	<-d.exited
	d.active = false
	return nil
}

// Done is closed when the configured duration has been rendered or the
// process function asked to stop.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Frames returns the number of frames rendered. Only meaningful after Done
// or Deactivate.
func (d *Driver) Frames() uint64 {
	return d.frames
}

// Analysis returns the per-channel analysis of everything rendered. Only
// meaningful after Done or Deactivate.
func (d *Driver) Analysis() []debug.AnalysisResult {
	results := make([]debug.AnalysisResult, len(d.summary))
	for ch, s := range d.summary {
		results[ch] = s.Result()
	}
	return results
}

// Close stops rendering and finalizes the WAV file.
func (d *Driver) Close() error {
	err := d.Deactivate()
	d.once.Do(func() { close(d.done) })

	if d.enc != nil {
		err = multierr.Append(err, d.encErr)
		err = multierr.Append(err, d.enc.Close())
		d.enc = nil
	}
	if d.file != nil {
		err = multierr.Append(err, d.file.Close())
		d.file = nil
		if err == nil {
			d.log.Info("wrote file", zap.String("path", d.cfg.Output), zap.Uint64("frames", d.frames))
		}
	}
	return err
}
