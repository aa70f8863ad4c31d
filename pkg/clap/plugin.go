package clap

// #include <stdlib.h>
// #include "bridge.h"
import "C"
import (
	"fmt"
	"unsafe"
)

// Plugin is a raw CLAP plugin instance. It performs no state checking: callers
// are responsible for honoring the CLAP call ordering and threading rules.
type Plugin struct {
	desc Descriptor
	host *Host
	ptr  *C.clap_plugin_t
}

// Create instantiates and initializes the plugin described by d. The bundle
// owning d is retained until Destroy.
func Create(f *Factory, d Descriptor, info *HostInfo) (*Plugin, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: invalid descriptor", ErrConstruction)
	}
	if err := f.bundle.Retain(); err != nil {
		return nil, err
	}

	host, err := newHost(info)
	if err != nil {
		f.bundle.Release()
		return nil, err
	}

	cID := C.CString(d.ID())
	defer C.free(unsafe.Pointer(cID))

	ptr := C.jc_factory_create(f.ptr, host.ptr, cID)
	if ptr == nil {
		host.free()
		f.bundle.Release()
		return nil, fmt.Errorf("%w: factory returned no instance for %q", ErrConstruction, d.ID())
	}

	if !C.jc_plugin_init(ptr) {
		C.jc_plugin_destroy(ptr)
		host.free()
		f.bundle.Release()
		return nil, fmt.Errorf("%w: %q failed to initialize", ErrConstruction, d.ID())
	}

	return &Plugin{desc: d, host: host, ptr: ptr}, nil
}

// Descriptor returns the descriptor the plugin was created from.
func (p *Plugin) Descriptor() Descriptor {
	return p.desc
}

// Host returns the host structure handed to the plugin.
func (p *Plugin) Host() *Host {
	return p.host
}

// Activate calls clap_plugin.activate. The first Process call afterwards
// binds the audio thread reported by the thread-check extension. [main-thread]
func (p *Plugin) Activate(sampleRate float64, minFrames, maxFrames uint32) bool {
	C.jc_host_unbind_audio_thread(p.host.ptr)
	return bool(C.jc_plugin_activate(p.ptr, C.double(sampleRate), C.uint32_t(minFrames), C.uint32_t(maxFrames)))
}

// Deactivate calls clap_plugin.deactivate. [main-thread]
func (p *Plugin) Deactivate() {
	C.jc_plugin_deactivate(p.ptr)
}

// StartProcessing calls clap_plugin.start_processing.
func (p *Plugin) StartProcessing() bool {
	return bool(C.jc_plugin_start_processing(p.ptr))
}

// StopProcessing calls clap_plugin.stop_processing.
func (p *Plugin) StopProcessing() {
	C.jc_plugin_stop_processing(p.ptr)
}

// Reset calls clap_plugin.reset.
func (p *Plugin) Reset() {
	C.jc_plugin_reset(p.ptr)
}

// OnMainThread calls clap_plugin.on_main_thread. [main-thread]
func (p *Plugin) OnMainThread() {
	C.jc_plugin_on_main_thread(p.ptr)
}

// Process renders frames samples into b. [audio-thread]
//
// No allocation and no locking happens on this path.
func (p *Plugin) Process(b *ProcessBlock, frames uint32) Status {
	return Status(C.jc_block_process(p.ptr, p.host.ptr, b.ptr, C.uint32_t(frames)))
}

// Destroy calls clap_plugin.destroy and releases the host structure and the
// bundle reference. Destroying twice is a no-op. [main-thread]
func (p *Plugin) Destroy() {
	if p.ptr == nil {
		return
	}
	C.jc_plugin_destroy(p.ptr)
	p.ptr = nil
	p.host.free()
	p.desc.bundle.Release()
}
