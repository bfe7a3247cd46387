// Package sync implements op sync (component G): watching a space
// directory for other peers' JSONL writes and ingesting them into the
// right tree, and (in worker.go) SpaceSync, which starts and stops the op
// flusher and the watcher together for one open space.
package sync

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitkury/supa/internal/opid"
)

// MergeTarget is the subset of reptree.RepTree the watcher needs.
type MergeTarget interface {
	Merge(ops []opid.Op)
}

// Resolver maps a tree id parsed out of a file path to the tree that
// should ingest its ops — the space tree if the id is the space root, or
// a loaded AppTree otherwise. Returns ok=false if the tree isn't loaded
// (the watcher just drops the event; the tree will pick up the ops next
// time it's loaded and replayed from disk).
type Resolver func(treeID string) (MergeTarget, bool)

// SecretsReloader is called when the "secrets" file changes on disk.
type SecretsReloader func()

// FSWatcher recursively watches a space directory for peer JSONL writes
// and feeds them into the engine, ignoring its own peer's files.
type FSWatcher struct {
	watcher   *fsnotify.Watcher
	spaceDir  string
	selfPeer  string
	resolve   Resolver
	onSecrets SecretsReloader
	done      chan struct{}
}

// NewFSWatcher constructs (but does not start) a watcher over spaceDir.
// selfPeer's own files are ignored (they arrive via the flusher, not
// sync). resolve and onSecrets may be nil.
func NewFSWatcher(spaceDir, selfPeer string, resolve Resolver, onSecrets SecretsReloader) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FSWatcher{
		watcher:   w,
		spaceDir:  spaceDir,
		selfPeer:  selfPeer,
		resolve:   resolve,
		onSecrets: onSecrets,
		done:      make(chan struct{}),
	}, nil
}

// Start adds recursive watches under spaceDir and begins processing
// events. IoTransient per §7: if adding a watch fails, this peer falls
// back to read-mostly / one-way sync rather than failing hard.
func (w *FSWatcher) Start() error {
	if err := addRecursive(w.watcher, w.spaceDir); err != nil {
		log.Printf("[sync] failed to establish full watch tree under %s: %v (continuing read-mostly)", w.spaceDir, err)
	}
	go w.loop()
	return nil
}

// Stop releases the underlying fsnotify watcher.
func (w *FSWatcher) Stop() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *FSWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[sync] watch error: %v", err)
		}
	}
}

func (w *FSWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if filepath.Base(event.Name) == "secrets" {
		if w.onSecrets != nil {
			w.onSecrets()
		}
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := statIsDir(event.Name); err == nil && info {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Printf("[sync] failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}

	treeID, peerID, ok := parseOpPath(event.Name)
	if !ok || peerID == w.selfPeer {
		return
	}
	if w.resolve == nil {
		return
	}
	target, ok := w.resolve(treeID)
	if !ok {
		return
	}

	ops, err := readOpsFile(event.Name, peerID)
	if err != nil {
		log.Printf("[sync] failed to read %s: %v", event.Name, err)
		return
	}
	target.Merge(ops)
}

// parseOpPath extracts (treeID, peerID) from
// .../ops/<tt>/<rest>/<date>/<peerId>.jsonl.
func parseOpPath(path string) (treeID, peerID string, ok bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	idx := -1
	for i, p := range parts {
		if p == "ops" {
			idx = i
			break
		}
	}
	// Expect exactly [..., "ops", tt, rest, date, peerFile].
	if idx < 0 || len(parts)-idx != 5 {
		return "", "", false
	}
	tt := parts[idx+1]
	rest := parts[idx+2]
	peerFile := parts[idx+4]
	return tt + rest, strings.TrimSuffix(peerFile, ".jsonl"), true
}
