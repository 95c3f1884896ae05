// Package fsutil enumerates the files fed into a pack operation.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// CollectFiles walks root recursively and returns the paths of all
// files found under it. Directories themselves are not returned, and
// no ordering is guaranteed.
func CollectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}
	return files, nil
}
