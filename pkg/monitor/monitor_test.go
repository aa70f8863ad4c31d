package monitor

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/jackclap/pkg/host"
	"github.com/justyntemme/jackclap/pkg/render"
)

type fakeSource struct {
	stats render.Stats
	xruns uint64
}

func (f *fakeSource) Stats() render.Stats { return f.stats }
func (f *fakeSource) Xruns() uint64       { return f.xruns }
func (f *fakeSource) Session() string     { return "session-1" }
func (f *fakeSource) AudioConfig() host.AudioConfig {
	return host.AudioConfig{SampleRate: 48000, MinFrames: 256, MaxFrames: 256}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		peak float32
		want float64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{0.001, 0},       // -60 dB
		{0.0316228, 0.5}, // -30 dB
	}
	for _, tt := range tests {
		if got := Level(tt.peak); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("Level(%v): expected %v, got %v", tt.peak, tt.want, got)
		}
	}
}

func TestUpdate(t *testing.T) {
	src := &fakeSource{stats: render.Stats{Callbacks: 10, Frames: 2560, Peaks: []float32{0.5, 0.25}}}
	quit := 0
	m := New(src, "Test Oscillator", []string{"out_l", "out_r"}, 0, func() { quit++ })

	if m.Init() == nil {
		t.Fatal("Expected a tick command")
	}

	_, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("Expected the next tick to be scheduled")
	}
	if m.peaks[0] != 0.5 || m.peaks[1] != 0.25 {
		t.Errorf("Expected peaks 0.5/0.25, got %v", m.peaks)
	}

	// Without new peaks the held level falls.
	src.stats.Peaks = []float32{0, 0}
	m.Update(tickMsg{})
	if m.peaks[0] >= 0.5 || m.peaks[0] <= 0 {
		t.Errorf("Expected a decaying peak, got %f", m.peaks[0])
	}

	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	if m.meters[0].Width != 30 {
		t.Errorf("Expected meter width 30, got %d", m.meters[0].Width)
	}

	src.stats.ProcessErrors = 3
	src.xruns = 2
	m.Update(tickMsg{})
	view := m.View()
	for _, want := range []string{"Test Oscillator", "out_l", "out_r", "session-1", "process errors", "xruns", "dBFS"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in view:\n%s", want, view)
		}
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if quit != 1 {
		t.Errorf("Expected onQuit once, got %d", quit)
	}
	if m.View() != "" {
		t.Error("Expected an empty view after quitting")
	}
}

func TestStopMsg(t *testing.T) {
	m := New(&fakeSource{}, "x", []string{"mono"}, 0, nil)
	_, cmd := m.Update(StopMsg{})
	if cmd == nil {
		t.Fatal("Expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
