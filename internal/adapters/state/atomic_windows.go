//go:build windows

package state

import (
	"os"
	"path/filepath"
)

// atomicWriteFile replaces path with data. renameio has no Windows support,
// so this writes a sibling temp file and renames it over the target.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
