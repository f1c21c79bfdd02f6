package server

import (
	"os"
	"path/filepath"
)

func mkdirFor(path string) error { return os.MkdirAll(filepath.Dir(path), 0o755) }

func writeEmpty(path string) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}
