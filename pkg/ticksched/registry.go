package ticksched

import "sync"

// registry holds every live record in registration order plus an id index.
// One mutex guards both structures together so they can never disagree about
// which ids are live. The same mutex also guards mutable record fields; the
// scheduler releases it before invoking any callback, which is what makes
// re-entrant scheduling calls from inside callbacks safe.
type registry struct {
	mu    sync.Mutex
	order []*record
	index map[ActionID]*record
}

func newRegistry() *registry {
	return &registry{index: map[ActionID]*record{}}
}

// removeLocked deletes the record from both structures in one step, so a
// partially-removed id can never be observed. Unknown ids are a no-op
// returning false. Call with mu held.
func (r *registry) removeLocked(id ActionID) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	delete(r.index, id)
	for i, rec := range r.order {
		if rec.id == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// snapshot returns a point-in-time copy of the ordered collection.
// Records added after the snapshot is taken are not part of it; removals
// afterwards leave the copy intact (liveness is re-checked per entry by the
// execution pass).
func (r *registry) snapshot() []*record {
	r.mu.Lock()
	snap := make([]*record, len(r.order))
	copy(snap, r.order)
	r.mu.Unlock()
	return snap
}

func (r *registry) len() int {
	r.mu.Lock()
	n := len(r.order)
	r.mu.Unlock()
	return n
}

func (r *registry) clear() {
	r.mu.Lock()
	r.order = nil
	r.index = map[ActionID]*record{}
	r.mu.Unlock()
}
