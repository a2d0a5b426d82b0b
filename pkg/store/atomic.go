package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// replaceFile atomically replaces path with data.
//
// It will:
// - Write to a temporary file in the same directory
// - Keep the original file mode
// - Sync before renaming over the original
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat original: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tznormalize-*")
	if err != nil {
		return fmt.Errorf("create temporary: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temporary file on any failure before the rename.
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("write temporary: %w", err))
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return fail(fmt.Errorf("chmod temporary: %w", err))
	}
	// Ensure data is written to disk
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename over original: %w", err)
	}
	return nil
}
