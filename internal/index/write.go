package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteArchive writes the index document to path as compact JSON. The write
// is a whole-document replace: content is staged to a temp file in the target
// directory and renamed into place, so readers never observe a partial index.
func WriteArchive(path string, a *Archive) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("stage index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}
