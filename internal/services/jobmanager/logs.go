package jobmanager

import (
	"os"
	"strings"

	"github.com/seralab/tunex/internal/common"
)

// tailReadBytes caps how much of a log file one tail request reads.
const tailReadBytes = 256 * 1024

// Logs returns the last n lines of a job's log artifact. n is capped
// by the configured tail maximum.
func (m *Manager) Logs(id string, n int) ([]string, error) {
	job, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	max := m.config.LogTailMax
	if max <= 0 {
		max = 200
	}
	if n <= 0 || n > max {
		n = max
	}

	logPath, ok := job.Artifacts["log"]
	if !ok {
		return []string{}, nil
	}
	return tailFile(logPath, n)
}

// tailFile reads at most n trailing lines without loading the whole
// file into memory.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, common.WrapError(common.KindFatal, err, "open log %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, common.WrapError(common.KindFatal, err, "stat log %s", path)
	}

	offset := int64(0)
	readLen := info.Size()
	if readLen > tailReadBytes {
		offset = readLen - tailReadBytes
		readLen = tailReadBytes
	}

	buf := make([]byte, readLen)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "read log %s", path)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		// First line may be a partial read.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
