// Package clap is the host side of the CLAP plugin ABI.
//
// It loads plugin bundles, enumerates their descriptors and drives raw plugin
// instances. The package holds no lifecycle policy: ordering rules live in the
// host package, which builds on the types exported here.
package clap

// #cgo CFLAGS: -I${SRCDIR}/../../include
// #cgo linux LDFLAGS: -ldl -lpthread
// #include "bridge.h"
import "C"
import "fmt"

// PluginFactoryID is the factory identifier requested from bundle entries.
const PluginFactoryID = "clap.plugin-factory"

// MaxChannels is the largest channel count a process block can carry per port.
const MaxChannels = C.JC_MAX_CHANNELS

// MaxFramesLimit is the largest block size the host will negotiate.
const MaxFramesLimit = 1 << 16

// Version is a CLAP ABI version triple.
type Version struct {
	Major    uint32
	Minor    uint32
	Revision uint32
}

// HostVersion is the ABI version this host was built against.
var HostVersion = Version{
	Major:    C.CLAP_VERSION_MAJOR,
	Minor:    C.CLAP_VERSION_MINOR,
	Revision: C.CLAP_VERSION_REVISION,
}

// Compatible reports whether a module built for v can be loaded by this host.
func (v Version) Compatible() bool {
	return v.Major >= 1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// Status is the result of a plugin process call.
type Status int32

const (
	StatusError              Status = C.CLAP_PROCESS_ERROR
	StatusContinue           Status = C.CLAP_PROCESS_CONTINUE
	StatusContinueIfNotQuiet Status = C.CLAP_PROCESS_CONTINUE_IF_NOT_QUIET
	StatusTail               Status = C.CLAP_PROCESS_TAIL
	StatusSleep              Status = C.CLAP_PROCESS_SLEEP
)

// OK reports whether the plugin produced valid output.
func (s Status) OK() bool {
	return s >= StatusContinue && s <= StatusSleep
}

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusContinue:
		return "continue"
	case StatusContinueIfNotQuiet:
		return "continue_if_not_quiet"
	case StatusTail:
		return "tail"
	case StatusSleep:
		return "sleep"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Request is a set of host requests raised by a plugin.
type Request uint32

const (
	RequestRestart  Request = C.JC_REQUEST_RESTART
	RequestProcess  Request = C.JC_REQUEST_PROCESS
	RequestCallback Request = C.JC_REQUEST_CALLBACK
)

// Has reports whether r contains all bits of o.
func (r Request) Has(o Request) bool {
	return r&o == o
}
