package vertex

import "github.com/mitkury/supa/internal/opid"

// EventKind tags the three notifications the store emits, always
// synchronous with, and after, the mutation that produced them.
type EventKind int

const (
	EventMove EventKind = iota
	EventChildren
	EventProperty
)

// Event is delivered to observers after the store has already applied the
// change; listeners see post-change state if they call back into the
// store.
type Event struct {
	Kind        EventKind
	VertexID    opid.VertexID
	OldParentID *opid.VertexID // EventMove only
	NewParentID *opid.VertexID // EventMove only
	Children    []opid.VertexID // EventChildren only
	Key         string          // EventProperty only
	Value       opid.Value      // EventProperty only
}

// Listener receives store events. Implementations must not perform
// blocking I/O; heavy work should be deferred by the caller (§5).
type Listener func(Event)

// Unsubscribe detaches a previously registered listener.
type Unsubscribe func()

type subscription struct {
	id uint64
	fn Listener
}

// Observe registers a global listener notified of every event on every
// vertex.
func (s *Store) Observe(fn Listener) Unsubscribe {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.global = append(s.global, subscription{id: id, fn: fn})
	s.mu.Unlock()
	return func() { s.removeGlobal(id) }
}

// ObserveVertex registers a listener notified only of events on id.
func (s *Store) ObserveVertex(id opid.VertexID, fn Listener) Unsubscribe {
	s.mu.Lock()
	subID := s.nextSubID
	s.nextSubID++
	s.perVertex[id] = append(s.perVertex[id], subscription{id: subID, fn: fn})
	s.mu.Unlock()
	return func() { s.removeVertex(id, subID) }
}

func (s *Store) removeGlobal(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.global {
		if sub.id == id {
			s.global = append(s.global[:i], s.global[i+1:]...)
			return
		}
	}
}

func (s *Store) removeVertex(target opid.VertexID, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.perVertex[target]
	for i, sub := range subs {
		if sub.id == id {
			s.perVertex[target] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// emit fans an event out to the global listeners and the per-vertex
// listeners for event.VertexID. Snapshots the listener lists under lock,
// then calls out without holding it, so a listener is free to register or
// deregister other listeners.
func (s *Store) emit(event Event) {
	s.mu.RLock()
	global := append([]subscription(nil), s.global...)
	perVertex := append([]subscription(nil), s.perVertex[event.VertexID]...)
	s.mu.RUnlock()

	for _, sub := range global {
		sub.fn(event)
	}
	for _, sub := range perVertex {
		sub.fn(event)
	}
}
