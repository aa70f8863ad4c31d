package clap

// #include "bridge.h"
import "C"
import (
	"fmt"
	"iter"
)

// Factory is the plugin factory of a loaded bundle.
type Factory struct {
	bundle *Bundle
	ptr    *C.clap_plugin_factory_t
}

// Bundle returns the bundle that exported the factory.
func (f *Factory) Bundle() *Bundle {
	return f.bundle
}

// Count returns the number of plugins the factory advertises.
func (f *Factory) Count() int {
	return int(C.jc_factory_count(f.ptr))
}

// Descriptor returns the descriptor at index i. The second result is false if
// the index is out of range or the plugin returned no descriptor.
func (f *Factory) Descriptor(i int) (Descriptor, bool) {
	if i < 0 || i >= f.Count() {
		return Descriptor{}, false
	}
	d := C.jc_factory_descriptor(f.ptr, C.uint32_t(i))
	if d == nil {
		return Descriptor{}, false
	}
	return Descriptor{bundle: f.bundle, ptr: d}, true
}

// Descriptors yields the factory's descriptors in index order. Enumeration has
// no side effects, so the sequence can be ranged over any number of times.
func (f *Factory) Descriptors() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		n := f.Count()
		for i := 0; i < n; i++ {
			d, ok := f.Descriptor(i)
			if !ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Infos returns owned copies of every descriptor.
func (f *Factory) Infos() []Info {
	var infos []Info
	for d := range f.Descriptors() {
		infos = append(infos, d.Info())
	}
	return infos
}

// FindDescriptor returns the first descriptor whose id equals id exactly.
func FindDescriptor(f *Factory, id string) (Descriptor, error) {
	return Find(f.Descriptors(), id)
}

// Find returns the first descriptor in seq whose id equals id exactly.
func Find(seq iter.Seq[Descriptor], id string) (Descriptor, error) {
	for d := range seq {
		if d.ID() == id {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}
