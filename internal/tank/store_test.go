package tank

import "testing"

func TestStoreUpsertAndDiff(t *testing.T) {
	store := NewStore()
	store.Upsert(&State{ID: "t1", X: 100, Health: 100, Alive: true})
	store.Upsert(&State{ID: "t2", X: 600, Health: 80, Alive: true})

	//1.- The first diff carries both tanks and no removals.
	diff := store.ConsumeDiff()
	if len(diff.Updated) != 2 || len(diff.Removed) != 0 {
		t.Fatalf("unexpected diff %+v", diff)
	}
	//2.- A drained store yields an empty diff.
	if diff := store.ConsumeDiff(); len(diff.Updated) != 0 || len(diff.Removed) != 0 {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
	//3.- Removal is reported exactly once.
	store.Remove("t2")
	diff = store.ConsumeDiff()
	if len(diff.Removed) != 1 || diff.Removed[0] != "t2" {
		t.Fatalf("unexpected removals %v", diff.Removed)
	}
}

func TestStoreIsolation(t *testing.T) {
	store := NewStore()
	original := &State{ID: "t1", X: 100, Health: 100, Alive: true}
	store.Upsert(original)
	//1.- Mutating the caller's struct must not leak into the store.
	original.Health = 1
	got, ok := store.Get("t1")
	if !ok {
		t.Fatalf("tank missing")
	}
	if got.Health != 100 {
		t.Fatalf("store aliased caller memory: %+v", got)
	}
	//2.- Snapshots are clones as well.
	snapshot := store.Snapshot()
	snapshot[0].Health = 5
	got, _ = store.Get("t1")
	if got.Health != 100 {
		t.Fatalf("snapshot aliased store memory: %+v", got)
	}
}
