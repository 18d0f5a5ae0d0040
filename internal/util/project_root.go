package util

import (
	"os"
	"path/filepath"
)

// FindConfigRoot searches upward from the working directory for a
// directory containing configFileName, falling back to the nearest
// go.mod ancestor, and finally the working directory itself. This lets
// config.Load find kosmokopy.yaml when invoked from a subdirectory of
// a project instead of only the exact cwd.
func FindConfigRoot(configFileName string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findConfigRootFromPath(wd, configFileName), nil
}

func findConfigRootFromPath(startPath, configFileName string) string {
	for path := filepath.Clean(startPath); ; {
		if _, err := os.Stat(filepath.Join(path, configFileName)); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	for path := filepath.Clean(startPath); ; {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	return startPath
}
