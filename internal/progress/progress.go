// Package progress tracks containers whose writer has not finished
// finalizing. A marker file present means the contents are not yet known to
// be fully migrated; it survives crashes so a later process can tell.
package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const Dir = "progress"

// Path returns the marker file for the container at containerPath:
// <parent of parent>/progress/<name>.
func Path(containerPath string) string {
	clean := filepath.Clean(containerPath)
	return filepath.Join(filepath.Dir(filepath.Dir(clean)), Dir, filepath.Base(clean))
}

// Mark creates an empty marker if there is none.
func Mark(containerPath string) error {
	path := Path(containerPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("create progress marker: %w", err)
	}
	return f.Close()
}

// Clear removes the marker. A missing marker is not an error.
func Clear(containerPath string) error {
	err := os.Remove(Path(containerPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove progress marker: %w", err)
	}
	return nil
}

func Exists(containerPath string) (bool, error) {
	_, err := os.Stat(Path(containerPath))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
