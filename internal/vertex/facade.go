package vertex

import "github.com/mitkury/supa/internal/opid"

// Engine is the subset of RepTree the façade needs to turn ergonomic calls
// into ops. Kept as an interface here (rather than importing reptree
// directly) because the dependency runs the other way: reptree.RepTree
// holds a *Store and implements Engine.
type Engine interface {
	VertexStore() *Store
	NewVertex(parentID opid.VertexID, props map[string]any) opid.VertexID
	SetVertexProperty(id opid.VertexID, key string, value any)
	SetTransientVertexProperty(id opid.VertexID, key string, value any)
	MoveVertex(id, newParentID opid.VertexID)
}

// Handle is ergonomic sugar over the store for one vertex. It holds no
// state of its own beyond an engine reference and an id — all real state
// lives in the engine's store, so a handle has no lifetime of its own.
type Handle struct {
	engine Engine
	id     opid.VertexID
}

// NewHandle wraps id for ergonomic access through engine.
func NewHandle(engine Engine, id opid.VertexID) *Handle {
	return &Handle{engine: engine, id: id}
}

// ID returns the wrapped vertex id.
func (h *Handle) ID() opid.VertexID { return h.id }

// Get returns the current snapshot of this vertex, or nil if it doesn't
// exist (e.g. it was never created, or this handle is stale).
func (h *Handle) Get() *Vertex {
	return h.engine.VertexStore().Get(h.id)
}

// Name returns the reserved "_n" property as a string, or "".
func (h *Handle) Name() string {
	v := h.Get()
	if v == nil {
		return ""
	}
	var name string
	if pv, ok := v.Properties[PropName]; ok {
		_ = pv.Decode(&name)
	}
	return name
}

// SetProperty emits one SetProperty op for key.
func (h *Handle) SetProperty(key string, value any) {
	h.engine.SetVertexProperty(h.id, key, value)
}

// SetTransientProperty emits an in-memory-only SetProperty op.
func (h *Handle) SetTransientProperty(key string, value any) {
	h.engine.SetTransientVertexProperty(h.id, key, value)
}

// SetProperties emits one op per key in obj.
func (h *Handle) SetProperties(obj map[string]any) {
	for k, v := range obj {
		h.SetProperty(k, v)
	}
}

// MoveTo re-parents this vertex under newParentID.
func (h *Handle) MoveTo(newParentID opid.VertexID) {
	h.engine.MoveVertex(h.id, newParentID)
}

// IsUnder reports whether ancestorID appears anywhere in this vertex's
// parent chain, walking up through the store. Used to tell whether a
// vertex has ended up under a reserved vertex such as a tombstone.
func (h *Handle) IsUnder(ancestorID opid.VertexID) bool {
	store := h.engine.VertexStore()
	cur := h.id
	seen := map[opid.VertexID]bool{}
	for {
		v := store.Get(cur)
		if v == nil || v.ParentID == nil {
			return false
		}
		cur = *v.ParentID
		if cur == ancestorID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
}

// NewChild is shorthand for engine.NewVertex(h.id, props).
func (h *Handle) NewChild(props map[string]any) *Handle {
	childID := h.engine.NewVertex(h.id, props)
	return NewHandle(h.engine, childID)
}

// Children returns handles for this vertex's children, in apply order.
func (h *Handle) Children() []*Handle {
	ids := h.engine.VertexStore().Children(h.id)
	out := make([]*Handle, len(ids))
	for i, id := range ids {
		out[i] = NewHandle(h.engine, id)
	}
	return out
}

// TypedObject returns {id, ...properties} flattened into a generic map,
// decoding each property's raw JSON eagerly.
func (h *Handle) TypedObject() map[string]any {
	v := h.Get()
	out := map[string]any{"id": h.id}
	if v == nil {
		return out
	}
	for k, pv := range v.Properties {
		var decoded any
		if err := pv.Decode(&decoded); err == nil {
			out[k] = decoded
		}
	}
	return out
}

// FindFirstChildWithProperty linearly scans children for one whose key
// property equals value (compared by raw encoded JSON).
func (h *Handle) FindFirstChildWithProperty(key string, value any) *Handle {
	want := opid.NewValue(value)
	for _, child := range h.Children() {
		v := child.Get()
		if v == nil {
			continue
		}
		if pv, ok := v.Properties[key]; ok && pv.Equal(want) {
			return child
		}
	}
	return nil
}

// LastPropertyOp returns the OpID that last wrote key on this vertex.
func (h *Handle) LastPropertyOp(key string) (opid.ID, bool) {
	return h.engine.VertexStore().LastPropertyOp(h.id, key)
}

// Observe re-fetches this vertex's snapshot and calls cb whenever a store
// event concerning it fires.
func (h *Handle) Observe(cb func(*Vertex)) Unsubscribe {
	return h.engine.VertexStore().ObserveVertex(h.id, func(Event) {
		cb(h.Get())
	})
}

// ObserveChildrenAsTypedArray re-projects h's children to typed objects and
// calls cb whenever the child list changes.
func (h *Handle) ObserveChildrenAsTypedArray(cb func([]map[string]any)) Unsubscribe {
	project := func() []map[string]any {
		children := h.Children()
		out := make([]map[string]any, len(children))
		for i, c := range children {
			out[i] = c.TypedObject()
		}
		return out
	}
	return h.engine.VertexStore().ObserveVertex(h.id, func(e Event) {
		if e.Kind == EventChildren {
			cb(project())
		}
	})
}
