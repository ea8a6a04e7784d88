package tank

import "sync"

// Diff aggregates updates and removals accumulated since the last consume.
type Diff struct {
	Updated []*State
	Removed []string
}

// Store maintains tank states with dirty tracking so observers receive
// incremental diffs instead of full rosters.
type Store struct {
	mu      sync.RWMutex
	states  map[string]*State
	dirty   map[string]struct{}
	removed map[string]struct{}
}

// NewStore constructs a tank container with initialized maps.
func NewStore() *Store {
	return &Store{
		states:  make(map[string]*State),
		dirty:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// Upsert records or updates a tank state and schedules it for the next diff.
func (s *Store) Upsert(state *State) {
	if s == nil || state == nil || state.ID == "" {
		return
	}
	clone := *state
	s.mu.Lock()
	//1.- Store the clone and mark it dirty while clearing any removal marker.
	s.states[clone.ID] = &clone
	delete(s.removed, clone.ID)
	s.dirty[clone.ID] = struct{}{}
	s.mu.Unlock()
}

// Remove deletes a tank and queues its ID for removal broadcasting.
func (s *Store) Remove(tankID string) {
	if s == nil || tankID == "" {
		return
	}
	s.mu.Lock()
	delete(s.states, tankID)
	delete(s.dirty, tankID)
	s.removed[tankID] = struct{}{}
	s.mu.Unlock()
}

// Get returns a copy of the identified tank state.
func (s *Store) Get(tankID string) (State, bool) {
	if s == nil {
		return State{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[tankID]
	if !ok || state == nil {
		return State{}, false
	}
	return *state, true
}

// ConsumeDiff retrieves and clears pending updates and removals.
func (s *Store) ConsumeDiff() Diff {
	if s == nil {
		return Diff{}
	}
	s.mu.Lock()
	//1.- Capture dirty IDs and removals before resetting the trackers.
	dirtyIDs := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		dirtyIDs = append(dirtyIDs, id)
	}
	removedIDs := make([]string, 0, len(s.removed))
	for id := range s.removed {
		removedIDs = append(removedIDs, id)
	}
	s.dirty = make(map[string]struct{})
	s.removed = make(map[string]struct{})

	//2.- Clone the states referenced by the dirty identifiers.
	updated := make([]*State, 0, len(dirtyIDs))
	for _, id := range dirtyIDs {
		state, ok := s.states[id]
		if !ok || state == nil {
			continue
		}
		clone := *state
		updated = append(updated, &clone)
	}
	s.mu.Unlock()
	return Diff{Updated: updated, Removed: removedIDs}
}

// Snapshot clones and returns every tank state currently tracked.
func (s *Store) Snapshot() []*State {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	snapshot := make([]*State, 0, len(s.states))
	for _, state := range s.states {
		if state == nil {
			continue
		}
		clone := *state
		snapshot = append(snapshot, &clone)
	}
	s.mu.RUnlock()
	return snapshot
}
