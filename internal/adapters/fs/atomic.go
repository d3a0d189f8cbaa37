package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with data through a rename, creating the
// parent directory if needed. Readers see either the old or the new file.
func writeFileAtomic(path string, data []byte, what string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", what, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", what, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s file: %w", what, err)
	}
	return nil
}
