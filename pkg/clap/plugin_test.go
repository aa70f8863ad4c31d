package clap

import (
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/justyntemme/jackclap/pkg/clap/testplugin"
)

func createTestPlugin(t *testing.T, id string) *Plugin {
	t.Helper()
	b := openTestBundle(t)
	f, _ := b.Factory()
	info := newTestHostInfo(t)

	d, err := FindDescriptor(f, id)
	if err != nil {
		t.Fatal(err)
	}
	p, err := Create(f, d, info)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", id, err)
	}
	// Registered after the bundle and identity so it runs first.
	t.Cleanup(p.Destroy)
	return p
}

func newTestBlock(t *testing.T, frames uint32) *ProcessBlock {
	t.Helper()
	b, err := NewProcessBlock(0, 2, frames, DefaultEventArena)
	if err != nil {
		t.Fatalf("NewProcessBlock failed: %v", err)
	}
	t.Cleanup(b.Free)
	return b
}

func TestCreateFailures(t *testing.T) {
	b := openTestBundle(t)
	f, _ := b.Factory()
	info := newTestHostInfo(t)
	live := testplugin.LiveInstances()

	for _, id := range []string{testplugin.IDFailInit, testplugin.IDNoInstance} {
		t.Run(id, func(t *testing.T) {
			d, err := FindDescriptor(f, id)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := Create(f, d, info); !errors.Is(err, ErrConstruction) {
				t.Errorf("Expected ErrConstruction, got %v", err)
			}
			if b.Instances() != 0 {
				t.Errorf("Expected bundle reference to be released, got %d", b.Instances())
			}
			if testplugin.LiveInstances() != live {
				t.Errorf("Expected %d live instances, got %d", live, testplugin.LiveInstances())
			}
		})
	}

	if _, err := Create(f, Descriptor{}, info); !errors.Is(err, ErrConstruction) {
		t.Errorf("Expected ErrConstruction for a zero descriptor, got %v", err)
	}
}

func TestPluginProcess(t *testing.T) {
	p := createTestPlugin(t, testplugin.IDOscillator)
	if !testplugin.ThreadCheckSeen() {
		t.Error("Expected the plugin to find the thread-check extension")
	}

	if !p.Activate(48000, 1, 256) {
		t.Fatal("Activate refused")
	}
	defer p.Deactivate()
	if !p.StartProcessing() {
		t.Fatal("StartProcessing refused")
	}
	defer p.StopProcessing()

	block := newTestBlock(t, 256)
	if status := p.Process(block, 128); status != StatusContinue {
		t.Fatalf("Expected %s, got %s", StatusContinue, status)
	}
	if block.SteadyTime() != 128 {
		t.Errorf("Expected steady time 128, got %d", block.SteadyTime())
	}

	left, right := block.Output(0), block.Output(1)
	if left[0] != 0 {
		t.Errorf("Expected first sample 0, got %f", left[0])
	}
	var peak float32
	for i := 0; i < 128; i++ {
		if left[i] != right[i] {
			t.Fatalf("Channels differ at %d: %f vs %f", i, left[i], right[i])
		}
		peak = max(peak, float32(math.Abs(float64(left[i]))))
	}
	if peak < 0.4 || peak > float32(testplugin.Amplitude)+1e-6 {
		t.Errorf("Expected peak near %v, got %f", testplugin.Amplitude, peak)
	}

	if status := p.Process(block, 512); status != StatusError {
		t.Errorf("Expected %s beyond max frames, got %s", StatusError, status)
	}
}

func TestAudioThreadBinding(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p := createTestPlugin(t, testplugin.IDOscillator)
	block := newTestBlock(t, 64)

	// processOn calls Process from a different OS thread and returns what the
	// plugin was told by is_audio_thread.
	processOn := func() int {
		done := make(chan int)
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			p.Process(block, 64)
			done <- testplugin.AudioThreadAnswer()
		}()
		return <-done
	}

	if !p.Activate(48000, 1, 64) || !p.StartProcessing() {
		t.Fatal("Activation refused")
	}
	p.Process(block, 64)
	if got := testplugin.AudioThreadAnswer(); got != 1 {
		t.Errorf("Expected the first process thread to be the audio thread, got %d", got)
	}
	if got := processOn(); got != 0 {
		t.Errorf("Expected another thread not to be the audio thread, got %d", got)
	}
	p.Process(block, 64)
	if got := testplugin.AudioThreadAnswer(); got != 1 {
		t.Errorf("Expected the binding to stay with the first thread, got %d", got)
	}

	// A new activation rebinds on the next process call.
	p.StopProcessing()
	p.Deactivate()
	if !p.Activate(48000, 1, 64) || !p.StartProcessing() {
		t.Fatal("Reactivation refused")
	}
	defer p.Deactivate()
	defer p.StopProcessing()
	if got := processOn(); got != 1 {
		t.Errorf("Expected the new process thread to be bound, got %d", got)
	}
}

func TestPluginOutputEvents(t *testing.T) {
	p := createTestPlugin(t, testplugin.IDEvents)
	p.Activate(44100, 1, 64)
	defer p.Deactivate()
	p.StartProcessing()
	defer p.StopProcessing()

	block := newTestBlock(t, 64)
	for i := 0; i < 2; i++ {
		if status := p.Process(block, 64); status != StatusContinue {
			t.Fatalf("Expected %s, got %s", StatusContinue, status)
		}
		if block.EventsPushed() != testplugin.EventsPerBlock {
			t.Errorf("Expected %d events per block, got %d", testplugin.EventsPerBlock, block.EventsPushed())
		}
		if block.EventsDropped() != 0 {
			t.Errorf("Expected no dropped events, got %d", block.EventsDropped())
		}
	}
}

func TestPluginRequests(t *testing.T) {
	p := createTestPlugin(t, testplugin.IDCallback)
	p.Activate(48000, 1, 32)
	defer p.Deactivate()
	p.StartProcessing()
	defer p.StopProcessing()

	if r := p.Host().TakeRequests(); r != 0 {
		t.Errorf("Expected no requests before processing, got %b", r)
	}

	p.Process(newTestBlock(t, 32), 32)

	r := p.Host().TakeRequests()
	if !r.Has(RequestCallback) {
		t.Errorf("Expected a callback request, got %b", r)
	}
	if r := p.Host().TakeRequests(); r != 0 {
		t.Errorf("Expected requests to be cleared, got %b", r)
	}

	before := testplugin.MainThreadCalls()
	p.OnMainThread()
	if testplugin.MainThreadCalls() != before+1 {
		t.Errorf("Expected %d main thread calls, got %d", before+1, testplugin.MainThreadCalls())
	}
}

func TestNewProcessBlock(t *testing.T) {
	tests := []struct {
		name    string
		in, out int
		frames  uint32
		wantErr bool
	}{
		{"Stereo", 0, 2, 512, false},
		{"With inputs", 2, 2, 64, false},
		{"Zero frames", 0, 2, 0, true},
		{"Too many frames", 0, 2, MaxFramesLimit + 1, true},
		{"Too many channels", 0, MaxChannels + 1, 64, true},
		{"Negative inputs", -1, 2, 64, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewProcessBlock(tt.in, tt.out, tt.frames, DefaultEventArena)
			if tt.wantErr {
				if err == nil {
					b.Free()
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer b.Free()

			if b.Capacity() != tt.frames {
				t.Errorf("Expected capacity %d, got %d", tt.frames, b.Capacity())
			}
			if b.NumInputs() != tt.in || b.NumOutputs() != tt.out {
				t.Errorf("Expected %d/%d channels, got %d/%d", tt.in, tt.out, b.NumInputs(), b.NumOutputs())
			}
			if len(b.Output(0)) != int(tt.frames) {
				t.Errorf("Expected %d samples, got %d", tt.frames, len(b.Output(0)))
			}
			if b.Output(tt.out) != nil {
				t.Error("Expected nil past the last channel")
			}
		})
	}
}
