// Package testplugin links a set of small CLAP plugins into the process so the
// host can be exercised without a bundle on disk.
//
// The bundle exposes, in this order: a sine oscillator, "a", "b", a second
// "b", and variants that fail at init, start or process time, push output
// events, refuse to create an instance, or request main-thread callbacks.
package testplugin

// #cgo CFLAGS: -I${SRCDIR}/../../../include
// #cgo LDFLAGS: -lm
// #include "testplugin.h"
import "C"
import "unsafe"

// Plugin identifiers exported by the test bundle. They mirror testplugin.h.
const (
	IDOscillator  = "jackclap.test.oscillator"
	IDA           = "a"
	IDB           = "b"
	IDFailInit    = "jackclap.test.fail-init"
	IDFailStart   = "jackclap.test.fail-start"
	IDFailProcess = "jackclap.test.fail-process"
	IDEvents      = "jackclap.test.events"
	IDNoInstance  = "jackclap.test.no-instance"
	IDCallback    = "jackclap.test.callback"
)

// Signal properties of the oscillator.
const (
	Frequency      = C.TP_FREQUENCY
	Amplitude      = C.TP_AMPLITUDE
	EventsPerBlock = C.TP_EVENTS_PER_BLOCK
	Count          = 10
)

// Path is the pseudo path handed to the entry's init.
const Path = "testplugin.clap"

// Entry returns the clap_plugin_entry of the test bundle.
func Entry() unsafe.Pointer {
	return unsafe.Pointer(&C.tp_entry)
}

// EntryWithoutFactory returns an entry whose get_factory always returns NULL.
func EntryWithoutFactory() unsafe.Pointer {
	return unsafe.Pointer(&C.tp_entry_no_factory)
}

// EntryIncompatible returns an entry that declares CLAP 0.9.
func EntryIncompatible() unsafe.Pointer {
	return unsafe.Pointer(&C.tp_entry_incompatible)
}

// EntryInitFails returns an entry whose init reports failure.
func EntryInitFails() unsafe.Pointer {
	return unsafe.Pointer(&C.tp_entry_init_fails)
}

// LiveInstances returns the number of plugin instances not yet destroyed.
func LiveInstances() int {
	return int(C.tp_live_instances())
}

// MainThreadCalls returns how many times on_main_thread ran.
func MainThreadCalls() int {
	return int(C.tp_main_thread_calls_count())
}

// ThreadCheckSeen reports whether any plugin found the host thread-check extension.
func ThreadCheckSeen() bool {
	return C.tp_thread_check_was_seen() != 0
}

// AudioThreadAnswer returns what is_audio_thread reported during the most
// recent process call, or -1 before any.
func AudioThreadAnswer() int {
	return int(C.tp_audio_thread_answer_get())
}
