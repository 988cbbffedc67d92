package ticksched

import "testing"

func TestRegistryRemoveLocked(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	for i := 1; i <= 3; i++ {
		rec := &record{id: ActionID(i)}
		reg.order = append(reg.order, rec)
		reg.index[rec.id] = rec
	}

	reg.mu.Lock()
	ok := reg.removeLocked(2)
	again := reg.removeLocked(2)
	reg.mu.Unlock()

	if !ok || again {
		t.Fatalf("removeLocked = %v, repeat = %v; want true then false", ok, again)
	}
	if reg.len() != 2 {
		t.Fatalf("len = %d, want 2", reg.len())
	}
	for _, rec := range reg.snapshot() {
		if rec.id == 2 {
			t.Fatal("removed record still in order slice")
		}
	}
	reg.mu.Lock()
	_, live := reg.index[2]
	reg.mu.Unlock()
	if live {
		t.Fatal("removed record still in index")
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	t.Parallel()
	reg := newRegistry()
	rec := &record{id: 1}
	reg.order = append(reg.order, rec)
	reg.index[rec.id] = rec

	snap := reg.snapshot()
	reg.clear()

	if len(snap) != 1 || snap[0].id != 1 {
		t.Fatal("snapshot mutated by clear")
	}
	if reg.len() != 0 {
		t.Fatalf("len after clear = %d, want 0", reg.len())
	}
}
