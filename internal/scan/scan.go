// Package scan implements the directory scanner. It is a pure
// utility, external to the core, but is given a concrete
// implementation here so the rest of the module can be exercised end
// to end. The walk follows a plain CompressPath shape that already
// traverses a directory tree with filepath.Walk when building an
// archive.
package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jend-sync/jend/internal/wire"
)

// Scan walks root depth-first with filepath.WalkDir (lexical order
// within each directory) and returns one FileEntry per regular file
// found. The walk is not breadth-first: a subdirectory's files are
// listed before the entries that follow it in its parent.
// Symlinks, devices, and permission failures abort the walk with an
// I/O error.
func Scan(root string) ([]wire.FileEntry, error) {
	var entries []wire.FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if path == root {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("scan: %s is a symlink, which is unsupported", path)
		}
		if !d.Type().IsRegular() && !d.IsDir() {
			return fmt.Errorf("scan: %s is a device or special file, which is unsupported", path)
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		entries = append(entries, wire.FileEntry{
			PartialPath: splitPath(rel),
			Size:        uint64(info.Size()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func splitPath(rel string) []string {
	rel = filepath.ToSlash(rel)
	var parts []string
	start := 0
	for i := 0; i <= len(rel); i++ {
		if i == len(rel) || rel[i] == '/' {
			if i > start {
				parts = append(parts, rel[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
