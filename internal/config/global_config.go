package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectDir holds per-project configuration, state and catalog files.
const ProjectDir = ".rolechain"

// UserConfigDir returns the directory of the user-wide configuration file.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "rolechain"), nil
}

// ProjectConfigPath returns the project config file path under root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, ProjectDir, "config.yaml")
}

// EnsureProjectConfig writes DefaultConfigYAML to the project config path
// unless a file already exists there. It reports whether a file was created.
func EnsureProjectConfig(root string, force bool) (string, bool, error) {
	path := ProjectConfigPath(root)

	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, false, nil
		} else if !os.IsNotExist(statErr) {
			return "", false, fmt.Errorf("checking project config: %w", statErr)
		}
	}

	if err := AtomicWrite(path, []byte(DefaultConfigYAML)); err != nil {
		return "", false, fmt.Errorf("writing project config: %w", err)
	}
	return path, true, nil
}
