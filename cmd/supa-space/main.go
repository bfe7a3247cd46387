// Command supa-space runs a single local peer: it opens (or creates) a
// space directory, keeps its op log flushed to disk and in sync with
// other peers writing into the same directory, and exposes a small local
// HTTP surface (health check + websocket wire duplex for remote peers).
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/mitkury/supa/internal/api"
	"github.com/mitkury/supa/internal/config"
	"github.com/mitkury/supa/internal/opid"
	"github.com/mitkury/supa/internal/persist"
	"github.com/mitkury/supa/internal/reptree"
	"github.com/mitkury/supa/internal/space"
	bgsync "github.com/mitkury/supa/internal/sync"
	"github.com/mitkury/supa/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	spaceName := flag.String("space", "default", "name of the space to open under the spaces root")
	addr := flag.String("addr", "localhost:8080", "address to listen on")
	flag.Parse()

	fmt.Println("supa-space")
	fmt.Println("==========")
	fmt.Println()

	fmt.Println("Loading configuration...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("  Peer ID: %s\n", cfg.Peer.ID)
	fmt.Printf("  Spaces root: %s\n", cfg.Spaces.RootDir)
	fmt.Println()

	spaceDir := cfg.Spaces.RootDir + string(os.PathSeparator) + *spaceName
	fmt.Printf("Opening space %q at %s...\n", *spaceName, spaceDir)

	opStore := persist.NewOpStore(spaceDir, cfg.Peer.ID)

	var sp *space.Space
	declaredRoot, err := persist.ReadSpaceID(spaceDir)
	if err != nil {
		sp = space.New(cfg.Peer.ID, *spaceName)
		if err := persist.WriteSpaceID(spaceDir, sp.Tree.RootVertexID()); err != nil {
			log.Fatalf("Failed to write space pointer: %v", err)
		}
		fmt.Printf("  Created new space, root %s\n", sp.Tree.RootVertexID())
	} else {
		ops, err := opStore.Load(declaredRoot)
		if err != nil {
			log.Fatalf("Failed to load space ops: %v", err)
		}
		sp = space.FromOps(cfg.Peer.ID, ops)
		if err := persist.VerifyRoot(spaceDir, sp.Tree.RootVertexID()); err != nil {
			log.Fatalf("Space integrity check failed: %v", err)
		}
		fmt.Printf("  Reopened existing space, root %s (%d ops loaded)\n", sp.Tree.RootVertexID(), len(ops))
	}
	fmt.Println()

	secretsStore := persist.NewSecretsStore(spaceDir, sp.Tree.RootVertexID())
	secrets, err := secretsStore.Load()
	if err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}
	sp.SetSecrets(secrets)

	sp.SetTreeLoader(func(id opid.VertexID) (*space.AppTree, error) {
		ops, err := opStore.Load(id)
		if err != nil {
			return nil, err
		}
		tree := reptree.New(cfg.Peer.ID, ops...)
		var appID string
		if v, ok := tree.Vertex(tree.RootVertexID()).Get().Properties["appId"]; ok {
			_ = v.Decode(&appID)
		}
		return &space.AppTree{Tree: tree, AppID: appID}, nil
	})

	flusher := persist.NewFlusher(opStore)
	flusher.Track(sp.Tree.RootVertexID(), sp.Tree)

	var watcher *bgsync.FSWatcher
	if cfg.Sync.WatchEnabled {
		watcher, err = bgsync.NewFSWatcher(spaceDir, cfg.Peer.ID, func(treeID string) (bgsync.MergeTarget, bool) {
			if treeID == sp.Tree.RootVertexID() {
				return sp.Tree, true
			}
			at, err := sp.LoadAppTree(treeID)
			if err != nil {
				return nil, false
			}
			return at.Tree, true
		}, func() {
			if s, err := secretsStore.Load(); err == nil {
				sp.SetSecrets(s)
			}
		})
		if err != nil {
			log.Fatalf("Failed to create fs watcher: %v", err)
		}
	}

	spaceSync := bgsync.NewSpaceSync(flusher, watcher)
	if err := spaceSync.Start(); err != nil {
		log.Fatalf("Failed to start space sync: %v", err)
	}
	defer spaceSync.Stop()

	fmt.Println("  Op flush and fs-watch sync started")
	fmt.Println()

	mux := api.NewCORSMux()
	healthHandler := api.NewHealthHandler(cfg.Peer.ID, func() []api.SpaceStatus {
		return []api.SpaceStatus{{
			RootVertexID:  sp.Tree.RootVertexID(),
			WatcherActive: watcher != nil,
		}}
	})
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/wire", func(w http.ResponseWriter, r *http.Request) {
		handleWire(w, r, sp, opStore)
	})

	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health - liveness and open-space status")
	fmt.Println("  GET  /wire   - websocket op-exchange duplex")
	fmt.Println()
	fmt.Printf("Listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// handleWire upgrades an incoming connection to a wire duplex, sends the
// full op history so the remote peer can reconstruct the tree from
// scratch, and merges incoming op batches into the space tree.
func handleWire(w http.ResponseWriter, r *http.Request, sp *space.Space, opStore *persist.OpStore) {
	d, err := wire.Upgrade(w, r, func(lines [][]byte) {
		ops := wire.DecodeLines(lines, "remote")
		sp.Tree.Merge(ops)
	}, nil)
	if err != nil {
		log.Printf("[wire] upgrade failed: %v", err)
		return
	}
	defer d.Close()

	snapshot, err := opStore.Load(sp.Tree.RootVertexID())
	if err != nil {
		log.Printf("[wire] loading snapshot failed: %v", err)
		return
	}
	if err := d.SendSnapshot(snapshot); err != nil {
		log.Printf("[wire] sending snapshot failed: %v", err)
		return
	}
	if err := d.Run("remote"); err != nil {
		log.Printf("[wire] connection closed: %v", err)
	}
}
