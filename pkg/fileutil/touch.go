package fileutil

import (
	"fmt"
	"os"
	"time"
)

// Touch sets the access and modification times of an existing path to t.
// Unlike touch(1) it never creates the file.
func Touch(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("failed to update timestamps: %w", err)
	}
	return nil
}
