// Package space implements the conventional structure RepTree instances
// take on when used as a workspace (component E): a Space tree with named
// root children, and AppTree satellites it references by id.
package space

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/google/uuid"
	"github.com/mitkury/supa/internal/opid"
	"github.com/mitkury/supa/internal/reptree"
	"github.com/mitkury/supa/internal/vertex"
)

// Reserved root-level child names, per spec §4.E.
const (
	ChildAppConfigs = "app-configs"
	ChildAppForest  = "app-forest"
	ChildProviders  = "providers"
	ChildSettings   = "settings"

	// ChildTombstone names the reserved vertex deleted vertices (and,
	// transitively, their descendants) are moved under. It is never
	// garbage-collected — late-arriving ops against a deleted subtree
	// must still have somewhere to apply (Data Model, Lifecycle).
	ChildTombstone = "tombstone"

	RootName    = "space"
	AppTreeName = "app-tree"
)

// TreeLoader resolves an AppTree by its root vertex id, consulting
// whatever persistence backend the host wires in (component F). Injected
// so this package never imports persist directly.
type TreeLoader func(id opid.VertexID) (*AppTree, error)

// AppTree is an independent RepTree whose root carries
// {_n:"app-tree", appId, createdAt}.
type AppTree struct {
	Tree  *reptree.RepTree
	AppID string
}

// RootVertexID is the handle a Space's app-forest vertex points to via the
// "tid" property.
func (a *AppTree) RootVertexID() opid.VertexID { return a.Tree.RootVertexID() }

const loadedAppTreeCacheTTL = 30 * time.Minute

// Space is a RepTree with the conventional root layout described in
// spec §4.E, plus the in-memory satellites (secrets, loaded app trees)
// that live alongside it but are never part of the replicated tree.
type Space struct {
	Tree *reptree.RepTree

	mu         sync.RWMutex
	secrets    map[string]string
	treeLoader TreeLoader
	loaded     *lru.LRU[opid.VertexID, *AppTree]

	newAppTreeListeners []func(*AppTree)
	treeLoadListeners   []func(*AppTree)
}

// New creates a brand new space for peerID: root + five named children
// (app-configs, app-forest, providers, settings, tombstone) + a default
// app-config vertex, all as one genesis op list (must be merge-safe, per S1).
func New(peerID, name string) *Space {
	tree := reptree.New(peerID)
	root := tree.NewVertex("", map[string]any{
		vertex.PropName: RootName,
		"version":       1,
		"name":          name,
	})

	rootHandle := tree.Vertex(root)
	rootHandle.NewChild(map[string]any{vertex.PropName: ChildAppConfigs})
	rootHandle.NewChild(map[string]any{vertex.PropName: ChildAppForest})
	rootHandle.NewChild(map[string]any{vertex.PropName: ChildProviders})
	rootHandle.NewChild(map[string]any{vertex.PropName: ChildSettings})
	rootHandle.NewChild(map[string]any{vertex.PropName: ChildTombstone})

	configs := rootHandle.FindFirstChildWithProperty(vertex.PropName, ChildAppConfigs)
	configs.NewChild(map[string]any{
		"id":           uuid.NewString(),
		"name":         "Default",
		"description":  "Default assistant",
		"instructions": "You are a helpful assistant.",
		"targetLLM":    "auto",
		"button":       "Chat",
	})

	return &Space{
		Tree:    tree,
		secrets: make(map[string]string),
		loaded:  lru.NewLRU[opid.VertexID, *AppTree](256, nil, loadedAppTreeCacheTTL),
	}
}

// FromOps reconstructs a Space from a persisted op multiset (any
// permutation), as done when opening an existing on-disk space.
func FromOps(peerID string, ops []opid.Op) *Space {
	tree := reptree.New(peerID, ops...)
	return &Space{
		Tree:    tree,
		secrets: make(map[string]string),
		loaded:  lru.NewLRU[opid.VertexID, *AppTree](256, nil, loadedAppTreeCacheTTL),
	}
}

// SetTreeLoader injects the callback used to resolve an AppTree id that
// isn't already memoized (the persistence layer's job).
func (s *Space) SetTreeLoader(loader TreeLoader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeLoader = loader
}

// IsValid reports whether the root has name "space" and the app-configs,
// app-forest and tombstone named children all exist.
func (s *Space) IsValid() bool {
	root := s.Tree.Vertex(s.Tree.RootVertexID())
	if root.Name() != RootName {
		return false
	}
	return root.FindFirstChildWithProperty(vertex.PropName, ChildAppConfigs) != nil &&
		root.FindFirstChildWithProperty(vertex.PropName, ChildAppForest) != nil &&
		root.FindFirstChildWithProperty(vertex.PropName, ChildTombstone) != nil
}

func (s *Space) namedChild(name string) *vertex.Handle {
	root := s.Tree.Vertex(s.Tree.RootVertexID())
	return root.FindFirstChildWithProperty(vertex.PropName, name)
}

// AppForest returns the handle for the "app-forest" named child.
func (s *Space) AppForest() *vertex.Handle { return s.namedChild(ChildAppForest) }

// AppConfigs returns the handle for the "app-configs" named child.
func (s *Space) AppConfigs() *vertex.Handle { return s.namedChild(ChildAppConfigs) }

// Providers returns the handle for the "providers" named child.
func (s *Space) Providers() *vertex.Handle { return s.namedChild(ChildProviders) }

// Settings returns the handle for the "settings" named child.
func (s *Space) Settings() *vertex.Handle { return s.namedChild(ChildSettings) }

// Tombstone returns the handle for the reserved "tombstone" named child
// that deleted vertices are moved under.
func (s *Space) Tombstone() *vertex.Handle { return s.namedChild(ChildTombstone) }

// DeleteVertex moves id (and, transitively, everything still parented
// under it) under the space's tombstone vertex. The vertex and its
// descendants are never removed from the store — only reparented — so
// ops that reference them arriving after the fact still apply cleanly
// (Data Model, Lifecycle).
func (s *Space) DeleteVertex(id opid.VertexID) {
	s.Tree.Vertex(id).MoveTo(s.Tombstone().ID())
}

// IsDeleted reports whether id has been moved under the tombstone,
// directly or via one of its ancestors.
func (s *Space) IsDeleted(id opid.VertexID) bool {
	return s.Tree.Vertex(id).IsUnder(s.Tombstone().ID())
}

// NewAppTree creates the referencing vertex under app-forest and
// constructs a fresh, independent AppTree for appID.
func (s *Space) NewAppTree(peerID, appID string) *AppTree {
	appTree := newAppTree(peerID, appID)

	forest := s.AppForest()
	forest.NewChild(map[string]any{
		"tid": appTree.RootVertexID(),
	})

	s.mu.Lock()
	s.loaded.Add(appTree.RootVertexID(), appTree)
	listeners := append([]func(*AppTree){}, s.newAppTreeListeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(appTree)
	}
	return appTree
}

func newAppTree(peerID, appID string) *AppTree {
	tree := reptree.New(peerID)
	tree.NewVertex("", map[string]any{
		vertex.PropName: AppTreeName,
		"appId":         appID,
	})
	return &AppTree{Tree: tree, AppID: appID}
}

// LoadAppTree returns the memoized AppTree for id, delegating to the
// injected TreeLoader on a cache miss.
func (s *Space) LoadAppTree(id opid.VertexID) (*AppTree, error) {
	s.mu.Lock()
	if at, ok := s.loaded.Get(id); ok {
		s.mu.Unlock()
		return at, nil
	}
	loader := s.treeLoader
	s.mu.Unlock()

	if loader == nil {
		return nil, fmt.Errorf("space: no tree loader configured, cannot load app tree %s", id)
	}
	at, err := loader(id)
	if err != nil {
		return nil, fmt.Errorf("loading app tree %s: %w", id, err)
	}

	s.mu.Lock()
	s.loaded.Add(id, at)
	listeners := append([]func(*AppTree){}, s.treeLoadListeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(at)
	}
	return at, nil
}

// OnNewAppTree registers cb to be called whenever NewAppTree creates one.
func (s *Space) OnNewAppTree(cb func(*AppTree)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newAppTreeListeners = append(s.newAppTreeListeners, cb)
}

// OnTreeLoad registers cb to be called whenever LoadAppTree resolves a
// cache miss through the tree loader.
func (s *Space) OnTreeLoad(cb func(*AppTree)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeLoadListeners = append(s.treeLoadListeners, cb)
}

// Secrets returns the in-memory secret map. It is never part of the
// replicated tree — persisted separately as an encrypted blob (§4.F).
func (s *Space) Secrets() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.secrets))
	for k, v := range s.secrets {
		out[k] = v
	}
	return out
}

// SetSecrets replaces the in-memory secret map (e.g. after decrypting the
// blob on load, or after the user edits a key in the UI).
func (s *Space) SetSecrets(secrets map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = secrets
}
