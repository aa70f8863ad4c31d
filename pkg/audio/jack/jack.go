// Package jack implements audio.Server on top of the JACK Audio Connection Kit.
package jack

// #cgo linux LDFLAGS: -ljack
// #cgo darwin LDFLAGS: -ljack
// #include <stdlib.h>
// #include "bridge.h"
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/justyntemme/jackclap/pkg/audio"
	"github.com/justyntemme/jackclap/pkg/debug"
)

// audioType is JACK_DEFAULT_AUDIO_TYPE.
const audioType = "32 bit float mono audio"

// ErrServer reports that no JACK server could be reached.
var ErrServer = errors.New("jack server unavailable")

// Option configures a Client.
type Option func(*options)

type options struct {
	startServer bool
	mlock       bool
	autoConnect bool
	logger      *debug.Logger
}

// WithStartServer lets jack_client_open start a server when none is running.
func WithStartServer() Option {
	return func(o *options) { o.startServer = true }
}

// WithMlock locks the process memory so the realtime thread never faults.
func WithMlock() Option {
	return func(o *options) { o.mlock = true }
}

// WithAutoConnect connects the output ports to the physical playback ports
// on activation.
func WithAutoConnect() Option {
	return func(o *options) { o.autoConnect = true }
}

// WithLogger sets the logger.
func WithLogger(l *debug.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Client is a JACK client. It implements audio.Server.
type Client struct {
	ptr   *C.jack_client_t
	slot  uintptr
	name  string
	opts  options
	log   *debug.Logger
	ports []*C.jack_port_t
	names []string

	// bufs is only touched by the process thread.
	bufs [][]float32

	fn     atomic.Pointer[audio.ProcessFunc]
	xruns  atomic.Uint64
	active bool

	done     chan struct{}
	doneOnce sync.Once
	closed   bool
}

var _ audio.Server = (*Client)(nil)

// Open connects to the JACK server as client name.
func Open(name string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = debug.Default()
	}
	log = log.Named("jack")

	c := &Client{
		opts: o,
		log:  log,
		done: make(chan struct{}),
	}
	slot, err := acquireSlot(c)
	if err != nil {
		return nil, err
	}
	c.slot = slot

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	startServer := C.int(0)
	if o.startServer {
		startServer = 1
	}
	var status C.jack_status_t
	c.ptr = C.jc_jack_open(cName, startServer, &status)
	if c.ptr == nil {
		releaseSlot(slot, c)
		return nil, fmt.Errorf("%w: status 0x%x", ErrServer, uint32(status))
	}
	c.name = C.GoString(C.jack_get_client_name(c.ptr))

	if C.jc_jack_set_callbacks(c.ptr, C.uintptr_t(slot)) != 0 {
		C.jack_client_close(c.ptr)
		releaseSlot(slot, c)
		return nil, fmt.Errorf("jack: cannot install callbacks for %q", c.name)
	}

	if o.mlock {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			log.Warn("mlockall failed; page faults may cause xruns", zap.Error(err))
		}
	}

	log.Info("connected",
		zap.String("client", c.name),
		zap.Float64("sample_rate", c.SampleRate()),
		zap.Uint32("buffer_size", c.BufferSize()))
	return c, nil
}

// Name returns the client name assigned by the server.
func (c *Client) Name() string {
	return c.name
}

// SampleRate returns the server's sample rate.
func (c *Client) SampleRate() float64 {
	return float64(C.jack_get_sample_rate(c.ptr))
}

// BufferSize returns the server's period size.
func (c *Client) BufferSize() uint32 {
	return uint32(C.jack_get_buffer_size(c.ptr))
}

// Xruns returns the number of xruns reported since Open.
func (c *Client) Xruns() uint64 {
	return c.xruns.Load()
}

// RegisterOutputs registers one audio output port per name.
func (c *Client) RegisterOutputs(names ...string) error {
	if c.active {
		return errors.New("jack: ports must be registered before activation")
	}
	if len(names) == 0 {
		names = audio.DefaultPorts
	}

	portType := C.CString(audioType)
	defer C.free(unsafe.Pointer(portType))

	for _, name := range names {
		cName := C.CString(name)
		port := C.jack_port_register(c.ptr, cName, portType, C.ulong(C.JackPortIsOutput), 0)
		C.free(unsafe.Pointer(cName))
		if port == nil {
			return fmt.Errorf("jack: cannot register port %q", name)
		}
		c.ports = append(c.ports, port)
		c.names = append(c.names, name)
	}
	c.bufs = make([][]float32, len(c.ports))
	return nil
}

// Activate publishes fn and starts the process callback.
func (c *Client) Activate(fn audio.ProcessFunc) error {
	if c.active {
		return errors.New("jack: already active")
	}
	// The atomic store orders every prior write before the first callback.
	c.fn.Store(&fn)
	if rc := C.jack_activate(c.ptr); rc != 0 {
		c.fn.Store(nil)
		return fmt.Errorf("jack: activate failed (%d)", int(rc))
	}
	c.active = true

	if c.opts.autoConnect {
		c.connectPlayback()
	}
	return nil
}

func (c *Client) connectPlayback() {
	flags := C.ulong(C.JackPortIsPhysical) | C.ulong(C.JackPortIsInput)
	targets := C.jack_get_ports(c.ptr, nil, nil, flags)
	if targets == nil {
		c.log.Warn("no physical playback ports")
		return
	}
	defer C.jack_free(unsafe.Pointer(targets))

	dests := (*[1 << 20]*C.char)(unsafe.Pointer(targets))
	for i, port := range c.ports {
		dest := dests[i]
		if dest == nil {
			break
		}
		if rc := C.jack_connect(c.ptr, C.jack_port_name(port), dest); rc != 0 {
			c.log.Warn("connect failed", zap.String("port", c.names[i]), zap.String("dest", C.GoString(dest)))
			continue
		}
		c.log.Debug("connected port", zap.String("port", c.names[i]), zap.String("dest", C.GoString(dest)))
	}
}

// Deactivate stops the process callback. jack_deactivate returns once the
// callback is no longer running.
func (c *Client) Deactivate() error {
	if !c.active {
		return nil
	}
	c.active = false
	rc := C.jack_deactivate(c.ptr)
	c.fn.Store(nil)
	if rc != 0 {
		return fmt.Errorf("jack: deactivate failed (%d)", int(rc))
	}
	return nil
}

// Done is closed when the server shuts the client down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close deactivates and closes the client.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.Deactivate()
	if rc := C.jack_client_close(c.ptr); rc != 0 && err == nil {
		err = fmt.Errorf("jack: close failed (%d)", int(rc))
	}
	releaseSlot(c.slot, c)
	c.doneOnce.Do(func() { close(c.done) })
	return err
}

// process runs on the JACK process thread.
func (c *Client) process(n uint32) int {
	for i, port := range c.ports {
		buf := C.jack_port_get_buffer(port, C.jack_nframes_t(n))
		c.bufs[i] = (*[1 << 30]float32)(buf)[:n:n]
	}

	fn := c.fn.Load()
	if fn == nil {
		for _, b := range c.bufs {
			clear(b)
		}
		return 0
	}
	if !(*fn)(n, c.bufs) {
		return 1
	}
	return 0
}

// shutdown runs on a JACK thread when the server goes away.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}
