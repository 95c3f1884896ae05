// Package lib exposes the squish archive engine. Pack, List, and
// Unpack are the only entry points surrounding tooling calls into the
// core.
package lib

import (
	"squish/pkg/archive"
)

// Options configures a pack or unpack operation; see archive.Options.
type Options = archive.Options

// Summary re-exports the archive summary view.
type Summary = archive.Summary

// FileEntry re-exports the per-file summary entry.
type FileEntry = archive.FileEntry

// Pack archives the given files (paths under root) into a new archive
// at outputPath and returns the final archive size in bytes.
func Pack(root, outputPath string, files []string, opts Options) (int64, error) {
	w, err := archive.NewWriter(root, outputPath, opts)
	if err != nil {
		return 0, err
	}
	return w.Pack(files)
}

// List opens an archive and returns its summary without decompressing
// any chunk data.
func List(archivePath string) (*Summary, error) {
	r, err := archive.Open(archivePath, Options{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Summary()
}

// Unpack restores an archive's files under outputRoot.
func Unpack(archivePath, outputRoot string, opts Options) error {
	r, err := archive.Open(archivePath, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Unpack(outputRoot)
}
