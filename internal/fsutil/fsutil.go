// Package fsutil reads user-supplied files without leaving their directory.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxFileSize bounds files read through this package.
const MaxFileSize = 8 << 20

// ReadInDir reads name relative to dir. Symlinks and ".." components that
// resolve outside dir are rejected.
func ReadInDir(dir, name string) ([]byte, error) {
	if name == "" || name == "." || filepath.IsAbs(name) {
		return nil, fmt.Errorf("invalid file name: %q", name)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", name, MaxFileSize)
	}
	return data, nil
}

// ReadFileScoped reads path through a root opened at its directory.
func ReadFileScoped(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}
	return ReadInDir(filepath.Dir(cleaned), base)
}
