package kit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolve maps an import spec to an existing file. Candidates are tried
// in order:
//
//  1. the spec itself, relative to base unless already absolute
//  2. the same path with the filename's leading underscore toggled
//  3. each search folder joined with the spec, plain then toggled
//
// The underscore toggle lets imports name a partial without knowing
// whether the file on disk carries the "_" prefix. The first existing
// regular file wins, returned as an absolute path; exhausting every
// candidate is an ErrMissingFile naming the spec.
func (c *Compiler) resolve(base, spec string) (string, error) {
	literal := spec
	if !filepath.IsAbs(literal) {
		literal = filepath.Join(base, spec)
	}
	candidates := []string{literal, toggleUnderscore(literal)}
	for _, folder := range c.Folders {
		p := filepath.Join(folder, spec)
		candidates = append(candidates, p, toggleUnderscore(p))
	}
	for _, p := range candidates {
		if !isFile(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrIO, err)
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingFile, spec)
}

// toggleUnderscore adds a leading underscore to path's filename, or
// strips it when already present.
func toggleUnderscore(path string) string {
	dir, name := filepath.Split(path)
	if strings.HasPrefix(name, "_") {
		return dir + name[1:]
	}
	return dir + "_" + name
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
