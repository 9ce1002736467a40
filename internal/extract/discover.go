package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoPaths is returned when Discover is called without any path.
var ErrNoPaths = errors.New("no paths to scan")

// Discover expands paths into the sorted, de-duplicated list of absolute
// file paths to scan. Directories are walked recursively, skipping hidden
// directories, and only files whose extension is in extensions are kept.
// Files named explicitly are always kept. An empty extension list keeps
// every file.
func Discover(paths []string, extensions []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	exts := newExtensionSet(extensions)

	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && isHidden(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || isHidden(d.Name()) || !exts.match(d.Name()) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// Matches reports whether path would be picked up by a directory walk with
// the given extensions.
func Matches(path string, extensions []string) bool {
	return !isHidden(filepath.Base(path)) && newExtensionSet(extensions).match(path)
}

type extensionSet map[string]struct{}

func newExtensionSet(extensions []string) extensionSet {
	exts := make(extensionSet, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return exts
}

func (s extensionSet) match(name string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[strings.ToLower(filepath.Ext(name))]
	return ok
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}
