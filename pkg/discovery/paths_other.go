//go:build !darwin

package discovery

var systemPaths = []string{"/usr/lib/clap"}
