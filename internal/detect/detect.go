package detect

import (
	"os"
	"path/filepath"
	"sort"
)

// Ignored directories (exact match on folder name). Scanners are told to
// skip them.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"bin":          {},
	"obj":          {},
	".venv":        {},
	"venv":         {},
	"__pycache__":  {},
}

// SkipDirs walks root and returns the ignored directories it contains,
// relative to root, sorted. Ignored directories are not descended into, so
// nested matches (node_modules inside node_modules) are not reported twice.
func SkipDirs(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == absRoot {
			return nil
		}
		if _, ok := ignoredDirs[d.Name()]; ok {
			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return err
			}
			dirs = append(dirs, filepath.ToSlash(rel))
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Ensure deterministic order
	sort.Strings(dirs)
	return dirs, nil
}
