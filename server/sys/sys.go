package sys

import (
	"io/fs"
	"path/filepath"
)

// DirectoryTree returns a flattened tree of the downloads directory.
func DirectoryTree(root string) ([]string, error) {
	var tree []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			tree = append(tree, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
