package clap

// #include "bridge.h"
import "C"

// Info contains an owned copy of plugin descriptor metadata.
type Info struct {
	ID          string   // Unique plugin identifier (e.g., "in.lsp-plug.oscillator_mono")
	Name        string   // Display name
	Vendor      string   // Company/developer name
	Version     string   // Version string as reported by the plugin
	URL         string   // Product page
	Description string   // Short description
	Features    []string // Feature tags (e.g., "instrument", "synthesizer")
}

// Descriptor is a read-only view of a descriptor owned by a bundle. It is only
// valid while the bundle it came from is loaded.
type Descriptor struct {
	bundle *Bundle
	ptr    *C.clap_plugin_descriptor_t
}

// Valid reports whether d refers to a descriptor.
func (d Descriptor) Valid() bool {
	return d.ptr != nil
}

// Bundle returns the bundle that owns the descriptor.
func (d Descriptor) Bundle() *Bundle {
	return d.bundle
}

// ID returns the plugin identifier, or "" if the plugin did not set one.
func (d Descriptor) ID() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.id)
}

// Name returns the display name.
func (d Descriptor) Name() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.name)
}

// Vendor returns the vendor name.
func (d Descriptor) Vendor() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.vendor)
}

// Version returns the plugin version string.
func (d Descriptor) Version() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.version)
}

// URL returns the plugin product URL.
func (d Descriptor) URL() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.url)
}

// Description returns the plugin description.
func (d Descriptor) Description() string {
	if d.ptr == nil {
		return ""
	}
	return goString(d.ptr.description)
}

// Features returns the NULL-terminated feature list.
func (d Descriptor) Features() []string {
	if d.ptr == nil || d.ptr.features == nil {
		return nil
	}
	var features []string
	for i := C.uint32_t(0); ; i++ {
		f := C.jc_descriptor_feature(d.ptr, i)
		if f == nil {
			break
		}
		features = append(features, C.GoString(f))
	}
	return features
}

// HasFeature reports whether the descriptor lists feature.
func (d Descriptor) HasFeature(feature string) bool {
	for _, f := range d.Features() {
		if f == feature {
			return true
		}
	}
	return false
}

// Info copies the descriptor metadata out of the bundle.
func (d Descriptor) Info() Info {
	return Info{
		ID:          d.ID(),
		Name:        d.Name(),
		Vendor:      d.Vendor(),
		Version:     d.Version(),
		URL:         d.URL(),
		Description: d.Description(),
		Features:    d.Features(),
	}
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}
