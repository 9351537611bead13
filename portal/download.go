package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Partial-download suffixes browsers use while a file is in flight
var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// snapshotDir returns the set of file names currently in dir
func snapshotDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// WaitForNewDownload polls dir for a file that was not present in the
// before snapshot, is not a browser partial, and has held a stable nonzero
// size across two polls. The completed file is renamed to
// <job>-YYYYmmdd-HHMMSS<ext> in the same directory and the new path is
// returned. Times out with a *TransientError.
func WaitForNewDownload(ctx context.Context, dir string, before map[string]struct{}, job string, timeout time.Duration) (string, error) {
	const pollInterval = 250 * time.Millisecond

	deadline := time.Now().Add(timeout)
	lastSizes := make(map[string]int64)

	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("read download dir: %w", err)
		}

		for _, e := range entries {
			name := e.Name()
			if _, existed := before[name]; existed || e.IsDir() || isPartial(name) {
				continue
			}

			info, err := e.Info()
			if err != nil {
				continue
			}
			size := info.Size()
			if size > 0 && lastSizes[name] == size {
				return finalizeDownload(dir, name, job)
			}
			lastSizes[name] = size
		}

		if time.Now().After(deadline) {
			return "", &TransientError{
				Op:  "download",
				Err: fmt.Errorf("no completed download in %s within %s", dir, timeout),
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// finalizeDownload renames the completed file to a timestamped name that
// identifies the job that produced it
func finalizeDownload(dir, name, job string) (string, error) {
	ext := filepath.Ext(name)
	stamped := fmt.Sprintf("%s-%s%s", job, time.Now().Format("20060102-150405"), ext)
	src := filepath.Join(dir, name)
	dst := filepath.Join(dir, stamped)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("rename download: %w", err)
	}
	return dst, nil
}
