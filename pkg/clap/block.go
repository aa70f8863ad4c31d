package clap

// #include "bridge.h"
import "C"
import (
	"fmt"
	"unsafe"
)

// DefaultEventArena is the output event arena size of a process block in bytes.
const DefaultEventArena = 16 << 10

// ProcessBlock is the C-owned memory handed to clap_plugin.process: the
// clap_process_t, one input and one output audio port, the per-channel scratch
// buffers and the event lists.
//
// Input channels are silent and flagged constant. The input event list is
// always empty; output events are copied into a fixed arena that is reset on
// every process call and never read back.
type ProcessBlock struct {
	ptr      *C.jc_block
	inputs   int
	outputs  [][]float32
	capacity uint32
}

// NewProcessBlock allocates a block able to carry frames samples per channel.
func NewProcessBlock(inputs, outputs int, frames uint32, arenaSize int) (*ProcessBlock, error) {
	if inputs < 0 || inputs > MaxChannels || outputs < 0 || outputs > MaxChannels {
		return nil, fmt.Errorf("channel count out of range: %d in, %d out", inputs, outputs)
	}
	if frames == 0 || frames > MaxFramesLimit {
		return nil, fmt.Errorf("block size out of range: %d", frames)
	}

	ptr := C.jc_block_new(C.uint32_t(inputs), C.uint32_t(outputs), C.uint32_t(frames), C.uint32_t(arenaSize))
	if ptr == nil {
		return nil, fmt.Errorf("process block allocation failed")
	}

	b := &ProcessBlock{
		ptr:      ptr,
		inputs:   inputs,
		outputs:  make([][]float32, outputs),
		capacity: frames,
	}
	for ch := 0; ch < outputs; ch++ {
		data := C.jc_block_output(ptr, C.uint32_t(ch))
		// View the C buffer without copying
		b.outputs[ch] = (*[1 << 30]float32)(unsafe.Pointer(data))[:frames:frames]
	}
	return b, nil
}

// Capacity returns the number of frames per channel the block can carry.
func (b *ProcessBlock) Capacity() uint32 {
	return b.capacity
}

// NumInputs returns the number of silent input channels.
func (b *ProcessBlock) NumInputs() int {
	return b.inputs
}

// NumOutputs returns the number of output channels.
func (b *ProcessBlock) NumOutputs() int {
	return len(b.outputs)
}

// Output returns the full-capacity scratch buffer of an output channel.
func (b *ProcessBlock) Output(ch int) []float32 {
	if ch < 0 || ch >= len(b.outputs) {
		return nil
	}
	return b.outputs[ch]
}

// SteadyTime returns the number of frames processed since the block was created.
func (b *ProcessBlock) SteadyTime() int64 {
	if b.ptr == nil {
		return 0
	}
	return int64(b.ptr.process.steady_time)
}

// EventsPushed returns the number of output events accepted during the last process call.
func (b *ProcessBlock) EventsPushed() uint32 {
	if b.ptr == nil {
		return 0
	}
	return uint32(b.ptr.events_pushed)
}

// EventsDropped returns the number of output events rejected during the last process call.
func (b *ProcessBlock) EventsDropped() uint32 {
	if b.ptr == nil {
		return 0
	}
	return uint32(b.ptr.events_dropped)
}

// Free releases the C memory. The block must not be used afterwards.
func (b *ProcessBlock) Free() {
	if b.ptr == nil {
		return
	}
	C.jc_block_free(b.ptr)
	b.ptr = nil
	b.outputs = nil
}
