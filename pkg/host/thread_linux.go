//go:build linux

package host

import "golang.org/x/sys/unix"

func osThreadID() int {
	return unix.Gettid()
}
