// Package opid defines the totally ordered operation identifier used by the
// replicated tree engine, and the tagged operation variants (Move,
// SetProperty) that make up the op log.
package opid

import "fmt"

// ID is a per-peer Lamport-like clock value paired with the peer that
// produced it. IDs are totally ordered: compare Counter first, then break
// ties lexicographically on PeerID.
type ID struct {
	Counter uint64
	PeerID  string
}

// Less reports whether id sorts strictly before other.
func (id ID) Less(other ID) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.PeerID < other.PeerID
}

// Greater reports whether id sorts strictly after other.
func (id ID) Greater(other ID) bool {
	return other.Less(id)
}

// Zero reports whether id is the unset value.
func (id ID) Zero() bool {
	return id.Counter == 0 && id.PeerID == ""
}

func (id ID) String() string {
	return fmt.Sprintf("%d@%s", id.Counter, id.PeerID)
}

// Max returns whichever of a, b sorts later.
func Max(a, b ID) ID {
	if a.Less(b) {
		return b
	}
	return a
}
