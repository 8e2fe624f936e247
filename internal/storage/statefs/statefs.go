// Package statefs persists the bandit state and SLA policy documents
// as single files with write-temp-then-rename semantics.
package statefs

import (
	"os"
	"path/filepath"

	"github.com/seralab/tunex/internal/common"
)

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return common.WrapError(common.KindFatal, err, "failed to create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return common.WrapError(common.KindFatal, err, "failed to rename temp file")
	}
	return nil
}
