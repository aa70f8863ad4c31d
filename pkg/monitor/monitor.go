// Package monitor is a terminal view of a running engine: per-channel peak
// meters and render counters, refreshed on a timer.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/jackclap/pkg/debug"
	"github.com/justyntemme/jackclap/pkg/host"
	"github.com/justyntemme/jackclap/pkg/render"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Floor is the lowest level shown on a meter, in dBFS.
const Floor = -60.0

// Source is what the monitor observes. *engine.Engine implements it.
type Source interface {
	Stats() render.Stats
	Xruns() uint64
	AudioConfig() host.AudioConfig
	Session() string
}

// Model is the bubbletea model of the monitor.
type Model struct {
	src     Source
	title   string
	ports   []string
	refresh time.Duration
	onQuit  func()

	meters   []progress.Model
	peaks    []float32
	stats    render.Stats
	started  time.Time
	elapsed  time.Duration
	quitting bool
}

type tickMsg time.Time

// StopMsg ends the monitor from outside, e.g. when the engine stopped.
type StopMsg struct{}

// New creates a monitor model. onQuit runs when the user quits.
func New(src Source, title string, ports []string, refresh time.Duration, onQuit func()) *Model {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	m := &Model{
		src:     src,
		title:   title,
		ports:   ports,
		refresh: refresh,
		onQuit:  onQuit,
		started: time.Now(),
	}
	for range ports {
		m.meters = append(m.meters, progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
			progress.WithWidth(40),
		))
	}
	m.peaks = make([]float32, len(ports))
	return m
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh timer.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles keys, window resizes and refresh ticks.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		width := min(max(msg.Width-30, 10), 80)
		for i := range m.meters {
			m.meters[i].Width = width
		}

	case StopMsg:
		m.quitting = true
		return m, tea.Quit

	case tickMsg:
		m.sample()
		return m, m.tick()
	}
	return m, nil
}

// sample reads the source and updates the held meter levels.
func (m *Model) sample() {
	m.stats = m.src.Stats()
	m.elapsed = time.Since(m.started)
	for ch := range m.peaks {
		// Falls by a fixed ratio per refresh unless a new peak arrives.
		m.peaks[ch] *= 0.7
		if ch < len(m.stats.Peaks) && m.stats.Peaks[ch] > m.peaks[ch] {
			m.peaks[ch] = m.stats.Peaks[ch]
		}
	}
}

// Level maps a linear peak to a meter position between 0 and 1.
func Level(peak float32) float64 {
	db := debug.DBFS(peak)
	if db <= Floor {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return (db - Floor) / -Floor
}

func formatDB(peak float32) string {
	db := debug.DBFS(peak)
	if db <= Floor {
		return "  -inf"
	}
	return fmt.Sprintf("%6.1f", db)
}

// View renders the monitor.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	cfg := m.src.AudioConfig()
	b.WriteString(titleStyle.Render("jackclap"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%.0f Hz, %d frames, session %s",
		cfg.SampleRate, cfg.MaxFrames, m.src.Session())))
	b.WriteString("\n\n")

	for ch, meter := range m.meters {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", m.ports[ch])))
		b.WriteString(" ")
		b.WriteString(meter.ViewAs(Level(m.peaks[ch])))
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(formatDB(m.peaks[ch]) + " dBFS"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	s := m.stats
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("callbacks"), valueStyle.Render(fmt.Sprint(s.Callbacks)),
		labelStyle.Render("time"), valueStyle.Render(fmt.Sprintf("%.1fs", s.Seconds(cfg.SampleRate))),
		labelStyle.Render("max callback"), valueStyle.Render(s.MaxDuration.String()))

	problems := []struct {
		label string
		n     uint64
	}{
		{"process errors", s.ProcessErrors},
		{"non-finite", s.NonFinite},
		{"over budget", s.OverBudget},
		{"xruns", m.src.Xruns()},
		{"panics", s.Panics},
	}
	var parts []string
	for _, p := range problems {
		style := valueStyle
		if p.n > 0 {
			style = errorStyle
		}
		parts = append(parts, labelStyle.Render(p.label)+" "+style.Render(fmt.Sprint(p.n)))
	}
	b.WriteString(strings.Join(parts, "   "))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q quit"))
	return b.String()
}

// Program wraps a running monitor.
type Program struct {
	p    *tea.Program
	done chan error
}

// Start runs the monitor on the terminal in the background.
func Start(ctx context.Context, m *Model) *Program {
	p := &Program{
		p:    tea.NewProgram(m, tea.WithContext(ctx)),
		done: make(chan error, 1),
	}
	go func() {
		_, err := p.p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			err = nil
		}
		p.done <- err
	}()
	return p
}

// Stop ends the monitor and waits for the terminal to be restored.
func (p *Program) Stop() error {
	p.p.Send(StopMsg{})
	return <-p.done
}
