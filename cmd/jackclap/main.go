// Command jackclap loads a CLAP bundle and plays one of its plugins through
// JACK, or renders it offline to a WAV file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/justyntemme/jackclap/pkg/audio"
	"github.com/justyntemme/jackclap/pkg/audio/jack"
	"github.com/justyntemme/jackclap/pkg/audio/offline"
	"github.com/justyntemme/jackclap/pkg/clap"
	"github.com/justyntemme/jackclap/pkg/config"
	"github.com/justyntemme/jackclap/pkg/debug"
	"github.com/justyntemme/jackclap/pkg/discovery"
	"github.com/justyntemme/jackclap/pkg/engine"
	"github.com/justyntemme/jackclap/pkg/host"
	"github.com/justyntemme/jackclap/pkg/monitor"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitNoPath   = 2
	exitNoPlugin = 3
)

func init() {
	// Plugin main-thread calls happen on the goroutine running main, which
	// stays on the process's main thread.
	runtime.LockOSThread()
}

// Replaced in tests.
var (
	searchPaths   = discovery.SearchPaths
	notifyContext = signal.NotifyContext
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type app struct {
	cfg     *config.Config
	list    bool
	scan    bool
	session string
	stdout  io.Writer
	stderr  io.Writer
	log     *debug.Logger
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, session: uuid.NewString()}

	path, err := a.parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer debug.Sync()

	if a.scan {
		return a.runScan()
	}

	if path == "" {
		path = a.cfg.Bundle
	}
	if path == "" {
		found, err := discovery.Find(searchPaths(), a.cfg.SearchHints)
		if err != nil {
			fmt.Fprintln(stderr, "Usage: jackclap [flags] /path/to/plugin.clap")
			fmt.Fprintf(stderr, "Error: %v (searched %v)\n", err, searchPaths())
			return exitNoPath
		}
		a.log.Info("discovered bundle", zap.String("path", found))
		path = found
	}

	bundle, err := clap.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	code := a.runBundle(bundle)
	if err := bundle.Close(); err != nil {
		a.log.Warn("closing bundle", zap.Error(err))
	}
	return code
}

// parse reads the config file and applies the explicitly set flags over it.
func (a *app) parse(args []string) (string, error) {
	fs := flag.NewFlagSet("jackclap", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	var (
		id          = fs.String("id", config.DefaultPluginID, "Plugin id to instantiate")
		list        = fs.Bool("list", false, "List the plugins in the bundle and exit")
		scan        = fs.Bool("scan", false, "List the bundles found in the search paths and exit")
		driver      = fs.String("driver", config.DriverJACK, "Audio driver: jack or offline")
		client      = fs.String("client", config.DefaultClientName, "JACK client name")
		connect     = fs.Bool("connect", true, "Connect outputs to the system playback ports")
		out         = fs.String("out", "", "WAV file written by the offline driver")
		duration    = fs.Duration("duration", 5*time.Second, "Offline render duration (0 renders until interrupted)")
		rate        = fs.Float64("rate", 48000, "Offline sample rate")
		block       = fs.Uint("block", 256, "Offline block size")
		cfgPath     = fs.String("config", "", "YAML configuration file")
		logLevel    = fs.String("log-level", "info", "Log level: debug, info, warn, error, off")
		logJSON     = fs.Bool("log-json", false, "Log JSON lines")
		showMonitor = fs.Bool("monitor", false, "Show live meters in the terminal")
	)
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: jackclap [flags] [/path/to/plugin.clap]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() > 1 {
		return "", fmt.Errorf("expected at most one bundle path, got %d", fs.NArg())
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return "", err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			cfg.PluginID = *id
		case "driver":
			cfg.Driver = *driver
		case "client":
			cfg.JACK.ClientName = *client
		case "connect":
			cfg.JACK.AutoConnect = *connect
		case "out":
			cfg.Offline.Output = *out
		case "duration":
			cfg.Offline.Duration = *duration
		case "rate":
			cfg.Offline.SampleRate = *rate
		case "block":
			cfg.Offline.BufferSize = uint32(*block)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-json":
			cfg.Log.JSON = *logJSON
		case "monitor":
			cfg.Monitor.Enabled = *showMonitor
		}
	})
	if err := config.Validate(cfg); err != nil {
		return "", err
	}

	level, err := debug.ParseLevel(cfg.Log.Level)
	if err != nil {
		return "", err
	}
	// Console logs would tear the monitor; route them away from the terminal.
	logOut := a.stderr
	if cfg.Monitor.Enabled && isTerminal(a.stdout) && isTerminal(a.stderr) {
		logOut = io.Discard
	}
	logger := debug.New(logOut, debug.Options{
		Level: level,
		JSON:  cfg.Log.JSON,
		Color: isTerminal(logOut),
	})
	a.log = logger.With(zap.String("session", a.session))
	debug.SetDefault(a.log)

	a.cfg = cfg
	a.list = *list
	a.scan = *scan
	return fs.Arg(0), nil
}

func (a *app) runScan() int {
	dirs := searchPaths()
	candidates := discovery.Candidates(dirs)
	printBundles(a.stdout, dirs, candidates)
	return exitOK
}

// runBundle lists or runs the configured plugin of an opened bundle.
func (a *app) runBundle(bundle *clap.Bundle) int {
	factory, ok := bundle.Factory()
	if !ok || factory.Count() == 0 {
		fmt.Fprintf(a.stderr, "Error: %v: %s exposes no plugins\n", clap.ErrFactoryMissing, bundle.Path())
		return exitNoPlugin
	}

	printPlugins(a.stdout, bundle, factory.Infos())
	if a.list {
		return exitOK
	}

	// Signals received during startup are delivered to Wait.
	ctx, stop := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := clap.NewHostInfo(a.cfg.Host.Name, a.cfg.Host.Vendor, a.cfg.Host.URL, a.cfg.Host.Version)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := info.Close(); err != nil {
			a.log.Warn("closing host identity", zap.Error(err))
		}
	}()

	opts := []host.Option{host.WithLogger(a.log)}
	if a.cfg.Engine.ThreadCheck {
		opts = append(opts, host.WithThreadCheck())
	}
	inst, err := host.New(bundle, a.cfg.PluginID, info, opts...)
	if errors.Is(err, clap.ErrNotFound) {
		fmt.Fprintf(a.stderr, "Error: could not find %q in %s\n", a.cfg.PluginID, bundle.Path())
		return exitNoPlugin
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	srv, err := a.openServer()
	if err != nil {
		inst.Destroy()
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	eng := engine.New(engine.Config{
		Ports:              a.ports(),
		MainThreadInterval: a.cfg.Engine.MainThreadInterval,
		StatsInterval:      a.statsInterval(),
	}, srv, inst, engine.WithLogger(a.log), engine.WithSession(a.session))

	if err := eng.Start(); err != nil {
		if cerr := eng.Close(); cerr != nil {
			a.log.Warn("teardown after failed start", zap.Error(cerr))
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	var mon *monitor.Program
	if a.cfg.Monitor.Enabled && isTerminal(a.stdout) {
		model := monitor.New(eng, inst.Descriptor().Name(), a.ports(), a.cfg.Monitor.Refresh, eng.Stop)
		mon = monitor.Start(ctx, model)
	}

	waitErr := eng.Wait(ctx)
	if mon != nil {
		if err := mon.Stop(); err != nil {
			a.log.Warn("monitor", zap.Error(err))
		}
	}
	closeErr := eng.Close()

	if drv, ok := srv.(*offline.Driver); ok {
		printAnalysis(a.stdout, a.ports(), drv.Analysis())
	}

	if err := multierr.Combine(waitErr, closeErr); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func (a *app) openServer() (audio.Server, error) {
	switch a.cfg.Driver {
	case config.DriverOffline:
		o := a.cfg.Offline
		return offline.New(offline.Config{
			SampleRate: o.SampleRate,
			BufferSize: o.BufferSize,
			Duration:   o.Duration,
			Output:     o.Output,
			BitDepth:   o.BitDepth,
			Realtime:   o.Realtime || a.cfg.Monitor.Enabled,
		}, a.log)
	default:
		j := a.cfg.JACK
		opts := []jack.Option{jack.WithLogger(a.log)}
		if j.AutoConnect {
			opts = append(opts, jack.WithAutoConnect())
		}
		if j.StartServer {
			opts = append(opts, jack.WithStartServer())
		}
		if j.Mlock {
			opts = append(opts, jack.WithMlock())
		}
		return jack.Open(j.ClientName, opts...)
	}
}

func (a *app) ports() []string {
	if a.cfg.Driver == config.DriverJACK {
		return a.cfg.JACK.Ports
	}
	return audio.DefaultPorts
}

// statsInterval disables periodic stats logging under the monitor, which
// consumes the held peaks itself.
func (a *app) statsInterval() time.Duration {
	if a.cfg.Monitor.Enabled {
		return 0
	}
	return a.cfg.Engine.StatsInterval
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
