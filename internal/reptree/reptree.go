// Package reptree implements the replicated tree engine (component C):
// op application, merge, cycle prevention on moves, deterministic conflict
// resolution via last-writer-wins, and the local-op buffer persistence
// drains from.
package reptree

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitkury/supa/internal/opid"
	"github.com/mitkury/supa/internal/vertex"
)

// RepTree is a single peer's view of one replicated tree. All state lives
// on one instance; it is safe to call from multiple goroutines (the fs
// watcher delivers remote ops on its own goroutine) but does all the work
// under one lock, matching the single-writer model in spec §5.
type RepTree struct {
	mu sync.Mutex

	peerID  string
	counter uint64

	store *vertex.Store

	applied map[opid.ID]struct{}
	pending []opid.Op

	localOps []opid.Op

	opListeners []func(opid.Op)

	root opid.VertexID
}

// New constructs a tree for peerID and folds initialOps, in whatever order
// they're given — folding is commutative, so any permutation converges to
// the same state (invariant 5).
func New(peerID string, initialOps ...opid.Op) *RepTree {
	t := &RepTree{
		peerID:  peerID,
		store:   vertex.NewStore(),
		applied: make(map[opid.ID]struct{}),
	}
	if len(initialOps) > 0 {
		t.Merge(initialOps)
	}
	return t
}

// VertexStore exposes the underlying store. Implements vertex.Engine.
func (t *RepTree) VertexStore() *vertex.Store { return t.store }

// PeerID returns this instance's peer id.
func (t *RepTree) PeerID() string { return t.peerID }

// RootVertexID returns the targetId of the unique Move with parentId=null,
// once it has been applied.
func (t *RepTree) RootVertexID() opid.VertexID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// Vertex returns a façade handle for id. The handle is valid even before id
// exists; Get() on it will return nil until a Move creates it.
func (t *RepTree) Vertex(id opid.VertexID) *vertex.Handle {
	return vertex.NewHandle(t, id)
}

func (t *RepTree) nextOpID() opid.ID {
	t.counter++
	return opid.ID{Counter: t.counter, PeerID: t.peerID}
}

func (t *RepTree) bumpClock(seen uint64) {
	if seen > t.counter {
		t.counter = seen
	}
}

// NewVertex allocates a fresh VertexID (GUID), emits one Move under
// parentID and one SetProperty per prop, all sharing a single _c timestamp
// if the caller didn't already supply one. Implements vertex.Engine.
func (t *RepTree) NewVertex(parentID opid.VertexID, props map[string]any) opid.VertexID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	var parentPtr *opid.VertexID
	if parentID != "" {
		p := parentID
		parentPtr = &p
	}
	t.emitLocked(opid.Move{OpID: t.nextOpID(), TargetID: id, ParentID: parentPtr})

	if _, hasCreatedAt := props[vertex.PropCreatedAt]; !hasCreatedAt {
		withCreatedAt := make(map[string]any, len(props)+1)
		for k, v := range props {
			withCreatedAt[k] = v
		}
		withCreatedAt[vertex.PropCreatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
		props = withCreatedAt
	}
	for k, v := range props {
		t.emitLocked(opid.SetProperty{OpID: t.nextOpID(), TargetID: id, Key: k, Value: opid.NewValue(v)})
	}
	return id
}

// MoveVertex emits a Move op re-parenting an existing vertex. It is the
// general-purpose reparent primitive: an ordinary move when newParentID is
// a live vertex, or a deletion when it is the space's reserved tombstone
// vertex (§4, Lifecycle) — descendants are never individually touched,
// since they stay attached to id and simply become unreachable from the
// real root along with it. Implements vertex.Engine.
func (t *RepTree) MoveVertex(id, newParentID opid.VertexID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var parentPtr *opid.VertexID
	if newParentID != "" {
		p := newParentID
		parentPtr = &p
	}
	t.emitLocked(opid.Move{OpID: t.nextOpID(), TargetID: id, ParentID: parentPtr})
}

// SetVertexProperty emits a SetProperty op. No-ops if the current value
// already equals value and this peer was the last writer (idempotence
// optimization) — it still emits when the last writer differs, since that
// emission is what lets the other peer converge.
func (t *RepTree) SetVertexProperty(id opid.VertexID, key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	newVal := opid.NewValue(value)
	if cur, ok := t.store.LastPropertyOp(id, key); ok {
		if v := t.store.Get(id); v != nil {
			if existing, has := v.Properties[key]; has && existing.Equal(newVal) && cur.PeerID == t.peerID {
				return
			}
		}
	}
	t.emitLocked(opid.SetProperty{OpID: t.nextOpID(), TargetID: id, Key: key, Value: newVal})
}

// SetTransientVertexProperty emits a SetProperty op that applies in memory
// but is flagged so the persistence layer never writes it to disk.
func (t *RepTree) SetTransientVertexProperty(id opid.VertexID, key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(opid.SetProperty{
		OpID: t.nextOpID(), TargetID: id, Key: key, Value: opid.NewValue(value), Transient: true,
	})
}

// Merge folds remote ops into this tree's state. Order among ops does not
// matter (commutativity, invariant 5); the Lamport clock is advanced past
// every counter seen.
func (t *RepTree) Merge(ops []opid.Op) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range ops {
		t.bumpClock(op.ID().Counter)
		t.enqueueLocked(op)
	}
	t.drainLocked()
}

// emitLocked is step 4.C.1: allocate (already done by caller), enqueue,
// drain, then remember the op as locally generated.
func (t *RepTree) emitLocked(op opid.Op) {
	t.enqueueLocked(op)
	t.drainLocked()
	t.localOps = append(t.localOps, op)
}

// PopLocalOps returns and clears the buffer of ops generated by this peer
// since the last pop.
func (t *RepTree) PopLocalOps() []opid.Op {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.localOps
	t.localOps = nil
	return out
}

// ObserveOpApplied registers cb to be called for every op that actually
// mutated state, immediately after it did so.
func (t *RepTree) ObserveOpApplied(cb func(opid.Op)) func() {
	t.mu.Lock()
	t.opListeners = append(t.opListeners, cb)
	idx := len(t.opListeners) - 1
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if idx < len(t.opListeners) {
			t.opListeners[idx] = nil
		}
	}
}

func (t *RepTree) notifyApplied(op opid.Op) {
	for _, cb := range t.opListeners {
		if cb != nil {
			cb(op)
		}
	}
}

// ObserveVertexMove registers cb for every accepted Move in the tree.
func (t *RepTree) ObserveVertexMove(cb func(id, oldParent, newParent opid.VertexID)) vertex.Unsubscribe {
	return t.store.Observe(func(e vertex.Event) {
		if e.Kind != vertex.EventMove {
			return
		}
		var oldP, newP opid.VertexID
		if e.OldParentID != nil {
			oldP = *e.OldParentID
		}
		if e.NewParentID != nil {
			newP = *e.NewParentID
		}
		cb(e.VertexID, oldP, newP)
	})
}

// ObserveVertex registers cb for every store event on id.
func (t *RepTree) ObserveVertex(id opid.VertexID, cb func(vertex.Event)) vertex.Unsubscribe {
	return t.store.ObserveVertex(id, cb)
}
