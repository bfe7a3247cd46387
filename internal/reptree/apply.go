package reptree

import "github.com/mitkury/supa/internal/opid"

// enqueueLocked adds op to the pending queue unless it has already been
// finalized (applied or permanently rejected) — ops can arrive more than
// once (duplicate delivery over the wire, or the same file re-read by the
// fs watcher).
func (t *RepTree) enqueueLocked(op opid.Op) {
	if _, done := t.applied[op.ID()]; done {
		return
	}
	t.pending = append(t.pending, op)
}

// drainLocked is the fixed-point apply loop from §4.C.3: repeatedly walk
// the pending queue, applying whatever is ready, until a full pass makes
// no progress.
func (t *RepTree) drainLocked() {
	for {
		progressed := false
		remaining := t.pending[:0:0]

		for _, op := range t.pending {
			if _, done := t.applied[op.ID()]; done {
				continue
			}
			switch o := op.(type) {
			case opid.SetProperty:
				if !t.store.Exists(o.TargetID) {
					remaining = append(remaining, op)
					continue
				}
				changed := t.store.ApplyProperty(o.TargetID, o.Key, o.Value, o.OpID)
				t.applied[o.OpID] = struct{}{}
				progressed = true
				if changed {
					t.notifyApplied(op)
				}
			case opid.Move:
				ready := o.ParentID == nil || t.store.Exists(*o.ParentID)
				if !ready {
					remaining = append(remaining, op)
					continue
				}
				accepted := t.tryApplyMoveLocked(o)
				t.applied[o.OpID] = struct{}{}
				progressed = true
				if accepted {
					t.notifyApplied(op)
				}
			default:
				// unknown op kind: drop it, never surfaced (§7).
				t.applied[op.ID()] = struct{}{}
				progressed = true
			}
		}

		t.pending = remaining
		if !progressed {
			return
		}
	}
}

// tryApplyMoveLocked implements step 2 of §4.C.3: LWW acceptance, then
// cycle rejection, then the actual store mutation. Returns whether the
// move took effect.
func (t *RepTree) tryApplyMoveLocked(m opid.Move) bool {
	existed := t.store.Exists(m.TargetID)

	if existed {
		current, _ := t.store.LastMoveOp(m.TargetID)
		if !m.OpID.Greater(current) {
			return false // superseded by the op already in effect
		}
		if m.ParentID != nil && t.wouldCreateCycleLocked(m.TargetID, *m.ParentID) {
			return false // CycleRejected: silently dropped, never surfaced
		}
	} else {
		t.store.EnsureCreated(m.TargetID)
		if m.ParentID == nil && t.root == "" {
			t.root = m.TargetID
		}
	}

	t.store.SetParent(m.TargetID, m.ParentID, m.OpID)
	return true
}

// wouldCreateCycleLocked walks ancestors from proposedParent; if target
// appears, placing target under proposedParent would create a cycle.
func (t *RepTree) wouldCreateCycleLocked(target, proposedParent opid.VertexID) bool {
	if target == proposedParent {
		return true
	}
	cur := proposedParent
	seen := map[opid.VertexID]bool{}
	for {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		v := t.store.Get(cur)
		if v == nil || v.ParentID == nil {
			return false
		}
		cur = *v.ParentID
	}
}
