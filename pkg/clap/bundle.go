package clap

// #include <stdlib.h>
// #include "bridge.h"
import "C"
import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// Bundle is a loaded CLAP module. It must outlive every plugin instance created
// from its factory; Close refuses to unload while instances are alive.
type Bundle struct {
	path   string
	handle unsafe.Pointer // dlopen handle, nil for in-process entries
	entry  *C.clap_plugin_entry_t

	mu     sync.Mutex
	refs   int
	closed bool
}

// Load maps the CLAP module at path into the process and initializes its entry.
//
// Loading executes foreign code with the full privileges of the host process.
// The caller asserts the module is trusted: no sandboxing is attempted.
func Load(path string) (*Bundle, error) {
	binary, err := resolveBinary(path)
	if err != nil {
		return nil, err
	}

	cBinary := C.CString(binary)
	defer C.free(unsafe.Pointer(cBinary))

	var cErr *C.char
	handle := C.jc_dlopen(cBinary, &cErr)
	if handle == nil {
		msg := "unknown dlopen error"
		if cErr != nil {
			msg = C.GoString(cErr)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrLoad, path, msg)
	}

	entry := C.jc_dlentry(handle)
	if entry == nil {
		C.jc_dlclose(handle)
		return nil, fmt.Errorf("%w: %s: missing clap_entry symbol", ErrLoad, path)
	}

	b, err := newBundle(path, handle, entry)
	if err != nil {
		C.jc_dlclose(handle)
		return nil, err
	}
	return b, nil
}

// FromEntry wraps a clap_plugin_entry that is already linked into the process.
// entry must point to a clap_plugin_entry_t that stays valid for the process
// lifetime; path is handed to entry->init.
func FromEntry(entry unsafe.Pointer, path string) (*Bundle, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrLoad)
	}
	return newBundle(path, nil, (*C.clap_plugin_entry_t)(entry))
}

func newBundle(path string, handle unsafe.Pointer, entry *C.clap_plugin_entry_t) (*Bundle, error) {
	v := C.jc_entry_version(entry)
	version := Version{Major: uint32(v.major), Minor: uint32(v.minor), Revision: uint32(v.revision)}
	if !version.Compatible() {
		return nil, fmt.Errorf("%w: %s: incompatible CLAP version %s", ErrLoad, path, version)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if !C.jc_entry_init(entry, cPath) {
		return nil, fmt.Errorf("%w: %s: entry init failed", ErrLoad, path)
	}

	return &Bundle{
		path:   path,
		handle: handle,
		entry:  entry,
	}, nil
}

// resolveBinary maps a bundle path to the file handed to dlopen. On macOS a
// .clap bundle is a directory holding the binary under Contents/MacOS.
func resolveBinary(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	if runtime.GOOS != "darwin" {
		return "", fmt.Errorf("%w: %s is a directory", ErrLoad, path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	binary := filepath.Join(path, "Contents", "MacOS", name)
	if _, err := os.Stat(binary); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return binary, nil
}

// Path returns the path the bundle was loaded from.
func (b *Bundle) Path() string {
	return b.path
}

// Version returns the CLAP version the module was built against.
func (b *Bundle) Version() Version {
	v := C.jc_entry_version(b.entry)
	return Version{Major: uint32(v.major), Minor: uint32(v.minor), Revision: uint32(v.revision)}
}

// Factory returns the plugin factory exported by the bundle. The second result
// is false when the module does not export one.
func (b *Bundle) Factory() (*Factory, bool) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, false
	}

	f := C.jc_entry_plugin_factory(b.entry)
	if f == nil {
		return nil, false
	}
	return &Factory{bundle: b, ptr: f}, true
}

// Retain records a live instance created from this bundle.
func (b *Bundle) Retain() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: bundle %s is closed", ErrIllegalState, b.path)
	}
	b.refs++
	return nil
}

// Release drops a reference taken with Retain.
func (b *Bundle) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		b.refs--
	}
}

// Instances returns the number of live instances created from this bundle.
func (b *Bundle) Instances() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Close deinitializes the entry and unloads the module. It fails while
// instances created from the bundle are still alive. Closing twice is a no-op.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if b.refs > 0 {
		return fmt.Errorf("%w: %d instance(s) still alive", ErrIllegalState, b.refs)
	}

	b.closed = true
	C.jc_entry_deinit(b.entry)
	if b.handle != nil {
		if C.jc_dlclose(b.handle) != 0 {
			return fmt.Errorf("%w: dlclose %s failed", ErrLoad, b.path)
		}
		b.handle = nil
	}
	return nil
}
