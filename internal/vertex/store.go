// Package vertex holds the in-memory tree: a node table with a parent/child
// index and property map (component B), plus an ergonomic typed façade over
// it (component D). RepTree is the only writer; everything here is a dumb,
// observable data structure.
package vertex

import (
	"sync"

	"github.com/mitkury/supa/internal/opid"
)

// Reserved property keys.
const (
	PropName      = "_n"
	PropCreatedAt = "_c"
)

// propValue is a single property slot with the OpID that last wrote it, so
// the store can enforce last-writer-wins without consulting the engine.
type propValue struct {
	value  opid.Value
	lastOp opid.ID
}

// Node is the store's canonical representation of one vertex.
type Node struct {
	ID         opid.VertexID
	ParentID   *opid.VertexID
	Properties map[string]propValue
	// LastMoveOp is the OpID of the Move currently in effect for this node.
	LastMoveOp opid.ID

	children []opid.VertexID // insertion-by-apply order
}

// Vertex is a read-only snapshot-friendly view handed to callers; mutation
// only ever happens through the engine.
type Vertex struct {
	ID         opid.VertexID
	ParentID   *opid.VertexID
	Properties map[string]opid.Value
}

// Store owns the node table, the parent/child index, and change
// notification. Cycle prevention and move LWW are the engine's job (§4.C);
// the one check the store makes itself is property LWW in ApplyProperty,
// which reports whether the write took effect.
type Store struct {
	mu    sync.RWMutex
	nodes map[opid.VertexID]*Node

	global    []subscription
	perVertex map[opid.VertexID][]subscription
	nextSubID uint64
}

// NewStore constructs an empty vertex store.
func NewStore() *Store {
	return &Store{
		nodes:     make(map[opid.VertexID]*Node),
		perVertex: make(map[opid.VertexID][]subscription),
	}
}

// Get returns the node for id, or nil if no Move has ever targeted it
// (invariant 6).
func (s *Store) Get(id opid.VertexID) *Vertex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	return snapshot(n)
}

func snapshot(n *Node) *Vertex {
	v := &Vertex{ID: n.ID, ParentID: n.ParentID, Properties: make(map[string]opid.Value, len(n.Properties))}
	for k, pv := range n.Properties {
		v.Properties[k] = pv.value
	}
	return v
}

// Exists reports whether id has been created (at least one applied Move).
func (s *Store) Exists(id opid.VertexID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Children returns id's children in insertion-by-apply order.
func (s *Store) Children(id opid.VertexID) []opid.VertexID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	out := make([]opid.VertexID, len(n.children))
	copy(out, n.children)
	return out
}

// LastMoveOp returns the OpID of the currently-effective Move for id, and
// whether id exists at all.
func (s *Store) LastMoveOp(id opid.VertexID) (opid.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return opid.ID{}, false
	}
	return n.LastMoveOp, true
}

// LastPropertyOp returns the OpID that last wrote (id, key).
func (s *Store) LastPropertyOp(id opid.VertexID, key string) (opid.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return opid.ID{}, false
	}
	pv, ok := n.Properties[key]
	if !ok {
		return opid.ID{}, false
	}
	return pv.lastOp, true
}

// EnsureCreated makes sure id has a node, creating one with a nil parent if
// needed. Returns true if a node was created. Used by the engine when
// accepting a Move whose target has never been seen.
func (s *Store) EnsureCreated(id opid.VertexID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; ok {
		return false
	}
	s.nodes[id] = &Node{ID: id, Properties: make(map[string]propValue)}
	return true
}

// SetParent updates id's parent pointer and both old/new parents' cached
// child lists, then emits move, then children(old), then children(new), in
// that order so observers see a consistent snapshot (§4.B).
func (s *Store) SetParent(id opid.VertexID, newParent *opid.VertexID, moveOp opid.ID) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	oldParent := n.ParentID
	n.ParentID = newParent
	n.LastMoveOp = moveOp

	if oldParent != nil {
		if old, ok := s.nodes[*oldParent]; ok {
			old.children = removeChild(old.children, id)
		}
	}
	var newChildrenSnapshot []opid.VertexID
	var newParentID opid.VertexID
	if newParent != nil {
		if np, ok := s.nodes[*newParent]; ok {
			np.children = append(np.children, id)
			newChildrenSnapshot = append([]opid.VertexID(nil), np.children...)
			newParentID = *newParent
		}
	}
	var oldChildrenSnapshot []opid.VertexID
	var oldParentID opid.VertexID
	if oldParent != nil {
		if old, ok := s.nodes[*oldParent]; ok {
			oldChildrenSnapshot = append([]opid.VertexID(nil), old.children...)
			oldParentID = *oldParent
		}
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventMove, VertexID: id, OldParentID: oldParent, NewParentID: newParent})
	if oldParent != nil {
		s.emit(Event{Kind: EventChildren, VertexID: oldParentID, Children: oldChildrenSnapshot})
	}
	if newParent != nil {
		s.emit(Event{Kind: EventChildren, VertexID: newParentID, Children: newChildrenSnapshot})
	}
}

// ApplyProperty writes (id, key) = value if opID is greater than the
// currently stored lastOp for that slot. Returns true if the write took
// effect.
func (s *Store) ApplyProperty(id opid.VertexID, key string, value opid.Value, opID opid.ID) bool {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	cur, exists := n.Properties[key]
	if exists && !opID.Greater(cur.lastOp) {
		s.mu.Unlock()
		return false
	}
	n.Properties[key] = propValue{value: value, lastOp: opID}
	s.mu.Unlock()

	s.emit(Event{Kind: EventProperty, VertexID: id, Key: key, Value: value})
	return true
}

func removeChild(children []opid.VertexID, id opid.VertexID) []opid.VertexID {
	for i, c := range children {
		if c == id {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}
