// Package discovery locates CLAP bundles on disk.
package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoCandidates is returned when no bundle was found in any search path.
var ErrNoCandidates = errors.New("no CLAP bundles found")

// Extension is the file name extension of a CLAP bundle.
const Extension = ".clap"

// DefaultHints are the name fragments preferred when picking a bundle.
var DefaultHints = []string{"osc", "synth"}

// SearchPaths returns the directories to scan: each entry of $CLAP_PATH,
// then ~/.clap and the system directory.
func SearchPaths() []string {
	var dirs []string
	if env := os.Getenv("CLAP_PATH"); env != "" {
		for _, dir := range filepath.SplitList(env) {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".clap"))
	}
	return append(dirs, systemPaths...)
}

// Candidates lists the bundles in dirs: entries named *.clap and any
// subdirectory. Unreadable directories are skipped. The result is sorted and
// free of duplicates.
func Candidates(dirs []string) []string {
	var found []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() || isDirTarget(e, path) {
				found = append(found, path)
				continue
			}
			if strings.HasSuffix(e.Name(), Extension) && (e.Type().IsRegular() || isRegularTarget(path)) {
				found = append(found, path)
			}
		}
	}
	slices.Sort(found)
	return slices.Compact(found)
}

func isDirTarget(e os.DirEntry, path string) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isRegularTarget(path string) bool {
	info, err := os.Stat(path)
	return err == nil && (info.Mode().IsRegular() || info.IsDir())
}

// Find picks the first candidate in dirs whose lowercased base name contains
// one of hints. ErrNoCandidates is returned when nothing matches.
func Find(dirs, hints []string) (string, error) {
	if path, ok := Prefer(Candidates(dirs), hints); ok {
		return path, nil
	}
	return "", ErrNoCandidates
}

// Prefer returns the first path whose lowercased base name contains a hint.
func Prefer(paths, hints []string) (string, bool) {
	for _, path := range paths {
		name := strings.ToLower(filepath.Base(path))
		for _, hint := range hints {
			if hint != "" && strings.Contains(name, strings.ToLower(hint)) {
				return path, true
			}
		}
	}
	return "", false
}
