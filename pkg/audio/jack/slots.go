package jack

import (
	"errors"
	"sync/atomic"
)

// maxClients bounds the number of JACK clients open in one process.
const maxClients = 16

var errNoSlot = errors.New("too many open JACK clients")

var slots [maxClients]atomic.Pointer[Client]

func acquireSlot(c *Client) (uintptr, error) {
	for i := range slots {
		if slots[i].CompareAndSwap(nil, c) {
			return uintptr(i), nil
		}
	}
	return 0, errNoSlot
}

func releaseSlot(i uintptr, c *Client) {
	if i < maxClients {
		slots[i].CompareAndSwap(c, nil)
	}
}

func lookup(i uintptr) *Client {
	if i >= maxClients {
		return nil
	}
	return slots[i].Load()
}
