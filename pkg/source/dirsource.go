// Package source provides photo.Source implementations. The core loader
// only depends on the photo.Source contract; the implementations here are
// for hosts that keep photos as plain files.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/marmos91/photoloader/pkg/photo"
)

// DirSource serves photos from a flat directory: each key is a file name
// relative to the root. A missing file is a confirmed "no photo" result,
// reported as a nil-bytes entry so the loader caches the absence.
type DirSource struct {
	root string
}

// NewDirSource creates a directory-backed photo source rooted at root.
func NewDirSource(root string) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("photo directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("photo directory %q is not a directory", root)
	}
	return &DirSource{root: root}, nil
}

// LoadBatch reads the files for the given keys.
func (s *DirSource) LoadBatch(ctx context.Context, keys []photo.Key) (map[photo.Key][]byte, error) {
	results := make(map[photo.Key][]byte, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := filepath.Base(string(key)) // keys never escape the root
		data, err := os.ReadFile(filepath.Join(s.root, name))
		switch {
		case err == nil:
			results[key] = data
		case os.IsNotExist(err):
			results[key] = nil
		default:
			// Transient read error: leave the key unresolved so the
			// loader retries it.
		}
	}
	return results, nil
}

// PreloadCandidates lists every regular file in the root, sorted by name.
func (s *DirSource) PreloadCandidates(ctx context.Context) ([]photo.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing photo directory: %w", err)
	}

	keys := make([]photo.Key, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			keys = append(keys, photo.Key(entry.Name()))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// PreloadBatch reads a speculative batch; same contract as LoadBatch.
func (s *DirSource) PreloadBatch(ctx context.Context, keys []photo.Key) (map[photo.Key][]byte, error) {
	return s.LoadBatch(ctx, keys)
}
