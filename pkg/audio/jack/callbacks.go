package jack

// #include <stdint.h>
// #include <jack/jack.h>
import "C"

// Callbacks arrive on JACK-owned threads. The slot index travels through the
// C arg pointer; the client is found without locking.

//export goJackProcess
func goJackProcess(nframes C.jack_nframes_t, slot C.uintptr_t) C.int {
	return C.int(handleProcess(uintptr(slot), uint32(nframes)))
}

//export goJackXrun
func goJackXrun(slot C.uintptr_t) {
	handleXrun(uintptr(slot))
}

//export goJackShutdown
func goJackShutdown(slot C.uintptr_t) {
	handleShutdown(uintptr(slot))
}

func handleProcess(slot uintptr, n uint32) int {
	c := lookup(slot)
	if c == nil {
		return 0
	}
	return c.process(n)
}

func handleXrun(slot uintptr) {
	if c := lookup(slot); c != nil {
		c.xruns.Add(1)
	}
}

func handleShutdown(slot uintptr) {
	if c := lookup(slot); c != nil {
		c.shutdown()
	}
}
