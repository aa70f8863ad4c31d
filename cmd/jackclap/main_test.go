package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/clap/testplugin"
)

func withSearchPaths(t *testing.T, dirs ...string) {
	t.Helper()
	prev := searchPaths
	searchPaths = func() []string { return dirs }
	t.Cleanup(func() { searchPaths = prev })
}

func newTestApp(t *testing.T, args ...string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, session: "test"}
	if _, err := a.parse(append([]string{"-log-level", "off"}, args...)); err != nil {
		t.Fatalf("Failed to parse %v: %v", args, err)
	}
	return a, &stdout, &stderr
}

func openTestBundle(t *testing.T) *clap.Bundle {
	t.Helper()
	b, err := clap.FromEntry(testplugin.Entry(), testplugin.Path)
	if err != nil {
		t.Fatalf("Failed to open test bundle: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRunArguments(t *testing.T) {
	t.Run("Help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := run([]string{"-h"}, &stdout, &stderr); code != exitOK {
			t.Errorf("Expected exit %d, got %d", exitOK, code)
		}
		if !strings.Contains(stderr.String(), "Usage: jackclap") {
			t.Errorf("Expected usage text, got %q", stderr.String())
		}
	})

	t.Run("UnknownFlag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := run([]string{"-bogus"}, &stdout, &stderr); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
	})

	t.Run("TwoBundles", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := run([]string{"a.clap", "b.clap"}, &stdout, &stderr); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
	})

	t.Run("InvalidDriver", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := run([]string{"-driver", "alsa", "a.clap"}, &stdout, &stderr); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
	})

	t.Run("NoBundleFound", func(t *testing.T) {
		withSearchPaths(t, t.TempDir())
		var stdout, stderr bytes.Buffer
		if code := run([]string{"-log-level", "off"}, &stdout, &stderr); code != exitNoPath {
			t.Errorf("Expected exit %d, got %d", exitNoPath, code)
		}
		if !strings.Contains(stderr.String(), "Usage:") {
			t.Errorf("Expected usage hint, got %q", stderr.String())
		}
	})

	t.Run("NoHintMatches", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "reverb.clap"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		withSearchPaths(t, dir)
		var stdout, stderr bytes.Buffer
		if code := run([]string{"-log-level", "off"}, &stdout, &stderr); code != exitNoPath {
			t.Errorf("Expected exit %d, got %d", exitNoPath, code)
		}
	})

	t.Run("BundleMissing", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		path := filepath.Join(t.TempDir(), "missing.clap")
		if code := run([]string{"-log-level", "off", path}, &stdout, &stderr); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
		if !strings.Contains(stderr.String(), "Error:") {
			t.Errorf("Expected error message, got %q", stderr.String())
		}
	})
}

func TestRunScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Surge XT.clap", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	withSearchPaths(t, dir)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-scan", "-log-level", "off"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("Expected exit %d, got %d: %s", exitOK, code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "Surge XT.clap") {
		t.Errorf("Expected bundle in listing, got %q", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("Expected non-bundles to be skipped, got %q", out)
	}
}

func TestParseOverrides(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "jackclap.yaml")
	yaml := "plugin_id: from.file\ndriver: offline\noffline:\n  buffer_size: 128\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	a, _, _ := newTestApp(t, "-config", cfgPath, "-block", "64")
	if a.cfg.PluginID != "from.file" {
		t.Errorf("Expected plugin id from file, got %q", a.cfg.PluginID)
	}
	if a.cfg.Offline.BufferSize != 64 {
		t.Errorf("Expected flag to override block size, got %d", a.cfg.Offline.BufferSize)
	}
	if a.cfg.Offline.SampleRate != 48000 {
		t.Errorf("Expected default sample rate, got %v", a.cfg.Offline.SampleRate)
	}
}

func TestRunBundle(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		a, stdout, _ := newTestApp(t, "-list")
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitOK {
			t.Fatalf("Expected exit %d, got %d", exitOK, code)
		}
		out := stdout.String()
		for _, want := range []string{testplugin.IDOscillator, "Test Oscillator", "instrument"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in listing, got %q", want, out)
			}
		}
	})

	t.Run("NoFactory", func(t *testing.T) {
		a, _, _ := newTestApp(t)
		b, err := clap.FromEntry(testplugin.EntryWithoutFactory(), testplugin.Path)
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		if code := a.runBundle(b); code != exitNoPlugin {
			t.Errorf("Expected exit %d, got %d", exitNoPlugin, code)
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		a, stdout, stderr := newTestApp(t, "-id", "does.not.exist")
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitNoPlugin {
			t.Errorf("Expected exit %d, got %d", exitNoPlugin, code)
		}
		if !strings.Contains(stdout.String(), testplugin.IDOscillator) {
			t.Errorf("Expected available ids on stdout, got %q", stdout.String())
		}
		if !strings.Contains(stderr.String(), "does.not.exist") {
			t.Errorf("Expected the missing id on stderr, got %q", stderr.String())
		}
	})

	t.Run("InitFails", func(t *testing.T) {
		a, _, _ := newTestApp(t, "-id", testplugin.IDFailInit)
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
	})

	t.Run("Offline", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.wav")
		a, stdout, stderr := newTestApp(t,
			"-id", testplugin.IDOscillator,
			"-driver", "offline",
			"-duration", "50ms",
			"-out", out,
		)
		live := testplugin.LiveInstances()
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitOK {
			t.Fatalf("Expected exit %d, got %d: %s", exitOK, code, stderr.String())
		}
		if n := testplugin.LiveInstances(); n != live {
			t.Errorf("Expected %d live instances after run, got %d", live, n)
		}
		if b.Instances() != 0 {
			t.Errorf("Expected bundle to have no instances, got %d", b.Instances())
		}
		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("Expected WAV output: %v", err)
		}
		// 2400 stereo 16-bit frames plus the header.
		if info.Size() < 2400*2*2 {
			t.Errorf("Expected at least %d bytes, got %d", 2400*2*2, info.Size())
		}
		if !strings.Contains(stdout.String(), "out_l") {
			t.Errorf("Expected analysis on stdout, got %q", stdout.String())
		}
	})

	t.Run("InterruptedDuringStartup", func(t *testing.T) {
		prev := notifyContext
		notifyContext = func(parent context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(parent)
			cancel()
			return ctx, cancel
		}
		t.Cleanup(func() { notifyContext = prev })

		out := filepath.Join(t.TempDir(), "out.wav")
		a, _, stderr := newTestApp(t,
			"-id", testplugin.IDOscillator,
			"-driver", "offline",
			"-duration", "1h",
			"-out", out,
		)
		live := testplugin.LiveInstances()
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitOK {
			t.Fatalf("Expected exit %d, got %d: %s", exitOK, code, stderr.String())
		}
		if n := testplugin.LiveInstances(); n != live {
			t.Errorf("Expected %d live instances after teardown, got %d", live, n)
		}
		if b.Instances() != 0 {
			t.Errorf("Expected bundle to have no instances, got %d", b.Instances())
		}
		if _, err := os.Stat(out); err != nil {
			t.Errorf("Expected the WAV file to be finalized: %v", err)
		}
	})

	t.Run("StartRefused", func(t *testing.T) {
		a, _, _ := newTestApp(t, "-id", testplugin.IDFailStart, "-driver", "offline", "-duration", "10ms")
		b := openTestBundle(t)
		if code := a.runBundle(b); code != exitFailure {
			t.Errorf("Expected exit %d, got %d", exitFailure, code)
		}
		if b.Instances() != 0 {
			t.Errorf("Expected instance to be destroyed, got %d", b.Instances())
		}
	})
}

func TestPrintPlugins(t *testing.T) {
	b := openTestBundle(t)
	var out bytes.Buffer
	printPlugins(&out, b, []clap.Info{{}, {ID: "x.y", Name: "XY", Vendor: "V", Version: "1.0"}})

	text := out.String()
	for _, want := range []string{"(no id)", "(unnamed)", "(unknown vendor)", "(unknown version)", "x.y", "XY"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in %q", want, text)
		}
	}
	if n := strings.Count(text, "---"); n != 2 {
		t.Errorf("Expected 2 entries, got %d", n)
	}
}
