package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrRootNotFound is returned when the root does not exist or is not a
// directory.
var ErrRootNotFound = errors.New("discover: root directory not found")

// SkipFunc is notified of every regular file that is not an EPUB.
type SkipFunc func(path string)

// EPUBs returns the paths of all files under root whose name ends in .epub,
// compared case-insensitively, sorted lexically. Paths are joined onto root.
// Directories named *.epub (unpacked books) are descended into, not
// returned. Directories listed in exclude are not entered, so an output
// directory nested in root never feeds back into a later run.
func EPUBs(root string, skipped SkipFunc, exclude ...string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			excluded[abs] = true
		}
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root || len(excluded) == 0 {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && excluded[abs] {
				return fs.SkipDir
			}
			return nil
		}
		if IsEPUB(d.Name()) {
			out = append(out, path)
		} else if skipped != nil {
			skipped(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// IsEPUB reports whether name has an .epub extension in any letter case.
func IsEPUB(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".epub")
}
