package sync

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/mitkury/supa/internal/opid"
)

// addRecursive walks dir and adds every subdirectory to watcher, so new
// date/peer files appearing anywhere under the space are observed.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // IoTransient: skip what we can't stat, keep walking
		}
		if info.IsDir() {
			if werr := watcher.Add(path); werr != nil {
				return fmt.Errorf("watching %s: %w", path, werr)
			}
		}
		return nil
	})
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// readOpsFile reads every line of path and decodes it as an op attributed
// to peerID, skipping malformed lines (§7).
func readOpsFile(path, peerID string) ([]opid.Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ops []opid.Op
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		op, err := opid.DecodeLine(line, peerID)
		if err != nil {
			continue
		}
		ops = append(ops, op)
	}
	return ops, scanner.Err()
}
