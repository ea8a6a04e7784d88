package ai

import "sync"

// SessionState is the per-game mutable memory of the decision engine: which
// target each shooter is locked on and how many consecutive shots it has
// fired at that target. The game session owns one instance and passes it into
// every AI call; Reset must be called at game start.
type SessionState struct {
	mu            sync.Mutex
	currentTarget map[string]string
	shotHistory   map[string]int
}

// NewSessionState constructs an empty session memory.
func NewSessionState() *SessionState {
	state := &SessionState{}
	state.Reset()
	return state
}

// Reset clears all target locks and shot history.
func (s *SessionState) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	//1.- Replace both maps so stale shooters from a previous game vanish.
	s.currentTarget = make(map[string]string)
	s.shotHistory = make(map[string]int)
	s.mu.Unlock()
}

// TargetFor reports the shooter's current target lock, if any.
func (s *SessionState) TargetFor(shooterID string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.currentTarget[shooterID]
	return target, ok
}

// SetTarget locks the shooter onto a target. Switching targets clears the
// shooter's bracketing history so zeroing-in starts over.
func (s *SessionState) SetTarget(shooterID, targetID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, had := s.currentTarget[shooterID]
	if had && previous == targetID {
		return
	}
	//1.- A retarget invalidates the shots already walked onto the old target.
	if had {
		delete(s.shotHistory, historyKey(shooterID, previous))
	}
	s.currentTarget[shooterID] = targetID
}

// RecordShot increments and returns the consecutive-shot count for the pair.
func (s *SessionState) RecordShot(shooterID, targetID string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := historyKey(shooterID, targetID)
	s.shotHistory[key]++
	return s.shotHistory[key]
}

// ConsecutiveShots reports how many shots the shooter has already fired at
// the target without retargeting.
func (s *SessionState) ConsecutiveShots(shooterID, targetID string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shotHistory[historyKey(shooterID, targetID)]
}

func historyKey(shooterID, targetID string) string {
	return shooterID + "\x00" + targetID
}
