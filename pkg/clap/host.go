package clap

// #include <stdlib.h>
// #include "bridge.h"
import "C"
import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
	"unsafe"
)

// HostInfo is the host self-description handed to plugins at creation time.
// The strings are copied into C memory once and stay there until Close.
type HostInfo struct {
	Name    string
	Vendor  string
	URL     string
	Version string

	mu      sync.Mutex
	cName   *C.char
	cVendor *C.char
	cURL    *C.char
	cVer    *C.char
	users   int
}

// NewHostInfo validates and packages the host identity. Name and version are
// required; every field must be valid UTF-8 without NUL bytes.
func NewHostInfo(name, vendor, url, version string) (*HostInfo, error) {
	fields := []struct {
		label, value string
		required     bool
	}{
		{"name", name, true},
		{"vendor", vendor, false},
		{"url", url, false},
		{"version", version, true},
	}
	for _, f := range fields {
		if f.required && f.value == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidIdentity, f.label)
		}
		if strings.IndexByte(f.value, 0) >= 0 {
			return nil, fmt.Errorf("%w: %s contains a NUL byte", ErrInvalidIdentity, f.label)
		}
		if !utf8.ValidString(f.value) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidIdentity, f.label)
		}
	}

	return &HostInfo{
		Name:    name,
		Vendor:  vendor,
		URL:     url,
		Version: version,
		cName:   C.CString(name),
		cVendor: C.CString(vendor),
		cURL:    C.CString(url),
		cVer:    C.CString(version),
	}, nil
}

// Close frees the C copies of the identity strings. It fails while plugin
// instances created with this identity are alive.
func (h *HostInfo) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users > 0 {
		return fmt.Errorf("%w: host identity in use by %d instance(s)", ErrIllegalState, h.users)
	}
	for _, p := range []**C.char{&h.cName, &h.cVendor, &h.cURL, &h.cVer} {
		if *p != nil {
			C.free(unsafe.Pointer(*p))
			*p = nil
		}
	}
	return nil
}

// Host is the per-instance clap_host_t handed to a plugin. Its address must
// stay stable for the lifetime of the plugin, so it lives in C memory.
type Host struct {
	info *HostInfo
	ptr  *C.jc_host
}

func newHost(info *HostInfo) (*Host, error) {
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.cName == nil {
		return nil, fmt.Errorf("%w: host identity is closed", ErrInvalidIdentity)
	}

	ptr := C.jc_host_new(info.cName, info.cVendor, info.cURL, info.cVer)
	if ptr == nil {
		return nil, fmt.Errorf("%w: out of memory", ErrConstruction)
	}
	info.users++
	return &Host{info: info, ptr: ptr}, nil
}

// Info returns the identity this host was built from.
func (h *Host) Info() *HostInfo {
	return h.info
}

// BindMainThread marks the calling OS thread as the plugin's main thread for
// the thread-check extension.
func (h *Host) BindMainThread() {
	C.jc_host_bind_main_thread(h.ptr)
}

// TakeRequests returns and clears the requests the plugin raised since the
// last call. Safe to call from any thread.
func (h *Host) TakeRequests() Request {
	return Request(C.jc_host_take_requests(h.ptr))
}

func (h *Host) free() {
	if h.ptr == nil {
		return
	}
	C.jc_host_free(h.ptr)
	h.ptr = nil

	h.info.mu.Lock()
	h.info.users--
	h.info.mu.Unlock()
}
