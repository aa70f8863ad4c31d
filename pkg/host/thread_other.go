//go:build !linux

package host

// Thread confinement is only checked on Linux.
func osThreadID() int {
	return 0
}
