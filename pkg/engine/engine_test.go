package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/justyntemme/jackclap/pkg/audio/offline"
	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/clap/testplugin"
	"github.com/justyntemme/jackclap/pkg/debug"
	"github.com/justyntemme/jackclap/pkg/host"
)

func newInstance(t *testing.T, id string) (*host.Instance, *clap.Bundle) {
	t.Helper()
	b, err := clap.FromEntry(testplugin.Entry(), testplugin.Path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := clap.NewHostInfo("engine-test", "", "", "0.1.0")
	if err != nil {
		t.Fatal(err)
	}
	inst, err := host.New(b, id, info, host.WithLogger(debug.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		inst.Destroy()
		if err := info.Close(); err != nil {
			t.Errorf("HostInfo.Close failed: %v", err)
		}
		if err := b.Close(); err != nil {
			t.Errorf("Bundle.Close failed: %v", err)
		}
	})
	return inst, b
}

func newDriver(t *testing.T, cfg offline.Config) *offline.Driver {
	t.Helper()
	d, err := offline.New(cfg, debug.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRunOffline(t *testing.T) {
	inst, b := newInstance(t, testplugin.IDOscillator)
	drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 128, Duration: 50 * time.Millisecond})

	e := New(Config{}, drv, inst, WithLogger(debug.Nop()), WithSession("test-session"))
	if e.Session() != "test-session" {
		t.Errorf("Expected session test-session, got %q", e.Session())
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if inst.State() != host.StateProcessing {
		t.Errorf("Expected %s, got %s", host.StateProcessing, inst.State())
	}
	want := host.AudioConfig{SampleRate: 48000, MinFrames: 1, MaxFrames: 128}
	if e.AudioConfig() != want {
		t.Errorf("Expected %+v, got %+v", want, e.AudioConfig())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Err() != nil {
		t.Fatal("Render did not finish before the timeout")
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if inst.State() != host.StateUnloaded {
		t.Errorf("Expected %s, got %s", host.StateUnloaded, inst.State())
	}
	if b.Instances() != 0 {
		t.Errorf("Expected no live instances, got %d", b.Instances())
	}

	s := e.Stats()
	if s.Frames != 2400 {
		t.Errorf("Expected 2400 frames, got %d", s.Frames)
	}
	// 2400 is not a multiple of 128; the last block reaches the plugin at 96.
	if s.ShortBlocks != 0 {
		t.Errorf("Expected no padded blocks, got %d", s.ShortBlocks)
	}
	if !s.Healthy() {
		t.Errorf("Expected healthy stats, got %+v", s)
	}

	for ch, r := range drv.Analysis() {
		if math.Abs(float64(r.Peak)-testplugin.Amplitude) > 0.01 {
			t.Errorf("Channel %d: expected peak %v, got %f", ch, testplugin.Amplitude, r.Peak)
		}
		// 440 Hz for 50 ms
		if r.ZeroCrossings < 42 || r.ZeroCrossings > 46 {
			t.Errorf("Channel %d: expected ~44 zero crossings, got %d", ch, r.ZeroCrossings)
		}
	}
}

func TestStartFailures(t *testing.T) {
	t.Run("StartRefused", func(t *testing.T) {
		inst, _ := newInstance(t, testplugin.IDFailStart)
		drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 64})
		defer drv.Close()

		e := New(Config{}, drv, inst, WithLogger(debug.Nop()))
		if err := e.Start(); !errors.Is(err, clap.ErrStart) {
			t.Errorf("Expected ErrStart, got %v", err)
		}
		if inst.State() != host.StateCreated {
			t.Errorf("Expected rollback to %s, got %s", host.StateCreated, inst.State())
		}
		if err := e.Wait(context.Background()); err == nil {
			t.Error("Wait should fail when not started")
		}
	})

	t.Run("RegisterFails", func(t *testing.T) {
		inst, _ := newInstance(t, testplugin.IDOscillator)
		drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 64})
		defer drv.Close()
		drv.Activate(func(uint32, [][]float32) bool { return true })

		e := New(Config{}, drv, inst, WithLogger(debug.Nop()))
		if err := e.Start(); err == nil {
			t.Error("Expected an error registering ports on an active server")
		}
		if inst.State() != host.StateCreated {
			t.Errorf("Expected rollback to %s, got %s", host.StateCreated, inst.State())
		}
	})
}

func TestWaitStops(t *testing.T) {
	run := func(t *testing.T, stop func(e *Engine, cancel context.CancelFunc)) {
		inst, _ := newInstance(t, testplugin.IDOscillator)
		drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 256, Realtime: true})

		e := New(Config{}, drv, inst, WithLogger(debug.Nop()))
		if err := e.Start(); err != nil {
			t.Fatal(err)
		}
		defer e.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- e.Wait(ctx) }()

		stop(e, cancel)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Wait returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Wait did not return")
		}
	}

	t.Run("Stop", func(t *testing.T) {
		run(t, func(e *Engine, _ context.CancelFunc) { e.Stop(); e.Stop() })
	})
	t.Run("Context", func(t *testing.T) {
		run(t, func(_ *Engine, cancel context.CancelFunc) { cancel() })
	})
}

func TestServiceMainThread(t *testing.T) {
	inst, _ := newInstance(t, testplugin.IDCallback)
	drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 64, Duration: 200 * time.Millisecond, Realtime: true})

	e := New(Config{MainThreadInterval: time.Millisecond, StatsInterval: 20 * time.Millisecond}, drv, inst, WithLogger(debug.Nop()))
	before := testplugin.MainThreadCalls()
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	if testplugin.MainThreadCalls() == before {
		t.Error("Expected on_main_thread to be called")
	}
	if !inst.Requests().Has(clap.RequestCallback) {
		t.Error("Expected a recorded callback request")
	}
	if e.Close() != nil {
		t.Error("Second Close should be a no-op")
	}
}

func TestRandomSession(t *testing.T) {
	inst, _ := newInstance(t, testplugin.IDA)
	drv := newDriver(t, offline.Config{SampleRate: 48000, BufferSize: 64})
	e := New(Config{}, drv, inst, WithLogger(debug.Nop()))
	defer e.Close()

	if len(e.Session()) != 36 {
		t.Errorf("Expected a UUID session id, got %q", e.Session())
	}
}
