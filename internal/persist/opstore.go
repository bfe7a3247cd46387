// Package persist implements the on-disk append-only op store and the
// encrypted secrets blob (component F). Every read tolerates a corrupt
// line by skipping it (§7 InvalidSpace); every write is append-only, one
// writer per (tree, day, peer).
package persist

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitkury/supa/internal/opid"
)

// dateLayout is the on-disk YYYY-MM-DD directory name format.
const dateLayout = "2006-01-02"

// OpStore reads and appends the per-peer JSONL op log for one space
// directory, laid out as ops/<tt>/<rest>/<YYYY-MM-DD>/<peerId>.jsonl.
type OpStore struct {
	spaceDir string
	peerID   string
}

// NewOpStore opens the op store rooted at spaceDir for peerID.
func NewOpStore(spaceDir, peerID string) *OpStore {
	return &OpStore{spaceDir: spaceDir, peerID: peerID}
}

func treeDir(spaceDir, treeID string) (string, error) {
	if len(treeID) < 2 {
		return "", fmt.Errorf("persist: tree id %q too short to partition", treeID)
	}
	tt, rest := treeID[:2], treeID[2:]
	return filepath.Join(spaceDir, "ops", tt, rest), nil
}

// Load reads every op ever written for treeID, across every date
// directory and every peer file, in the order: dates ascending, peers in
// directory-listing order. Corrupt lines are skipped and logged, not
// fatal (§7).
func (s *OpStore) Load(treeID string) ([]opid.Op, error) {
	dir, err := treeDir(s.spaceDir, treeID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing op directory %s: %w", dir, err)
	}

	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			if _, err := time.Parse(dateLayout, e.Name()); err == nil {
				dates = append(dates, e.Name())
			}
		}
	}
	sort.Strings(dates)

	var ops []opid.Op
	for _, date := range dates {
		dateDir := filepath.Join(dir, date)
		files, err := os.ReadDir(dateDir)
		if err != nil {
			return nil, fmt.Errorf("listing date directory %s: %w", dateDir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			peerID := strings.TrimSuffix(f.Name(), ".jsonl")
			fileOps, err := readJSONL(filepath.Join(dateDir, f.Name()), peerID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, fileOps...)
		}
	}
	return ops, nil
}

func readJSONL(path, peerID string) ([]opid.Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening op file %s: %w", path, err)
	}
	defer f.Close()

	var ops []opid.Op
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		op, err := opid.DecodeLine(line, peerID)
		if err != nil {
			// malformed line: skip, don't fail the whole file (§7).
			log.Printf("[persist] skipping malformed line in %s: %v", path, err)
			continue
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading op file %s: %w", path, err)
	}
	return ops, nil
}

// Append writes ops for treeID to today's file for this peer. Transient
// ops are filtered out before anything touches disk (§4.F).
func (s *OpStore) Append(treeID string, ops []opid.Op) error {
	var lines [][]byte
	for _, op := range ops {
		if sp, ok := op.(opid.SetProperty); ok && sp.Transient {
			continue
		}
		line, err := opid.EncodeLine(op)
		if err != nil {
			return fmt.Errorf("encoding op for tree %s: %w", treeID, err)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil
	}

	dir, err := treeDir(s.spaceDir, treeID)
	if err != nil {
		return err
	}
	dateDir := filepath.Join(dir, time.Now().UTC().Format(dateLayout))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return fmt.Errorf("creating op directory %s: %w", dateDir, err)
	}

	path := filepath.Join(dateDir, s.peerID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening op file %s for append: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("writing op line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	return w.Flush()
}
