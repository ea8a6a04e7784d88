package session

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"steelrain/sim/internal/ai"
	"steelrain/sim/internal/weapons"
)

const (
	envMatchID  = "STEELRAIN_MATCH_ID"
	envMinTanks = "STEELRAIN_MATCH_MIN_TANKS"
	envMaxTanks = "STEELRAIN_MATCH_MAX_TANKS"
)

var (
	// ErrInvalidTankID is returned when a join request omits the identifier.
	ErrInvalidTankID = errors.New("tank id must not be empty")
	// ErrMatchFull indicates the session reached its configured capacity.
	ErrMatchFull = errors.New("match capacity reached")
	// ErrInvalidCapacity is returned when capacity updates violate invariants.
	ErrInvalidCapacity = errors.New("invalid match capacity configuration")
	// ErrUnknownTank is returned for economy operations on unregistered tanks.
	ErrUnknownTank = errors.New("unknown tank")
	// ErrInsufficientFunds is returned when a purchase exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Capacity expresses the configured combatant limits for a match session.
type Capacity struct {
	MinTanks int `json:"min_tanks"`
	MaxTanks int `json:"max_tanks"`
}

// CombatantSnapshot is a stable view of one combatant's economy state.
type CombatantSnapshot struct {
	ID        string         `json:"id"`
	Balance   int            `json:"balance"`
	Inventory map[string]int `json:"inventory,omitempty"`
}

// Snapshot captures a stable view of the match session state for observers.
type Snapshot struct {
	MatchID    string              `json:"match_id"`
	Capacity   Capacity            `json:"capacity"`
	Round      int                 `json:"round"`
	Wind       float64             `json:"wind"`
	Combatants []CombatantSnapshot `json:"combatants,omitempty"`
}

type combatant struct {
	joinedAt  time.Time
	balance   int
	inventory map[string]int
}

// Option configures optional Session behaviour at construction time.
type Option func(*Session)

// Session owns the roster, economy and per-round state of one match.
type Session struct {
	mu sync.RWMutex

	id              string
	capacity        Capacity
	startingBalance int
	combatants      map[string]*combatant
	aim             *ai.SessionState
	round           int
	wind            float64
	now             func() time.Time
	envLookup       func(string) string

	idConfigured  bool
	capConfigured bool
}

// WithClock overrides the default wall-clock time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithEnvLookup injects a custom environment variable lookup mechanism.
func WithEnvLookup(lookup func(string) string) Option {
	return func(s *Session) {
		s.envLookup = lookup
	}
}

// WithMatchID sets the identifier used for replay and telemetry correlation.
func WithMatchID(id string) Option {
	return func(s *Session) {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return
		}
		s.id = trimmed
		s.idConfigured = true
	}
}

// WithCapacity configures the capacity explicitly, bypassing the environment.
func WithCapacity(cap Capacity) Option {
	return func(s *Session) {
		s.capacity = cap
		s.capConfigured = true
	}
}

// WithStartingBalance sets the opening credit balance for new combatants.
func WithStartingBalance(balance int) Option {
	return func(s *Session) {
		if balance >= 0 {
			s.startingBalance = balance
		}
	}
}

// NewSession constructs a match session using environment defaults when the
// caller did not configure an identifier or capacity explicitly.
func NewSession(opts ...Option) (*Session, error) {
	session := &Session{
		combatants: make(map[string]*combatant),
		aim:        ai.NewSessionState(),
		now:        time.Now,
		envLookup:  os.Getenv,
	}
	//1.- Apply caller options before consulting the environment.
	for _, opt := range opts {
		if opt != nil {
			opt(session)
		}
	}
	if err := session.applyEnvironment(); err != nil {
		return nil, err
	}
	//2.- Guarantee a deterministic identifier for replay bundles and telemetry.
	if strings.TrimSpace(session.id) == "" {
		session.id = session.defaultIdentifier()
	}
	if err := validateCapacity(session.capacity); err != nil {
		return nil, err
	}
	return session, nil
}

// ID returns the match identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Aim exposes the per-match targeting and bracketing memory.
func (s *Session) Aim() *ai.SessionState {
	if s == nil {
		return nil
	}
	return s.aim
}

// Join registers a combatant, enforcing capacity constraints. Rejoining is
// idempotent and refreshes the join timestamp without resetting the economy.
func (s *Session) Join(tankID string) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("session is nil")
	}
	trimmed := strings.TrimSpace(tankID)
	if trimmed == "" {
		return Snapshot{}, ErrInvalidTankID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.combatants[trimmed]
	if !ok {
		//1.- Reject new combatants once the roster is at capacity.
		if s.capacity.MaxTanks > 0 && len(s.combatants) >= s.capacity.MaxTanks {
			return Snapshot{}, ErrMatchFull
		}
		existing = &combatant{balance: s.startingBalance, inventory: make(map[string]int)}
		s.combatants[trimmed] = existing
	}
	existing.joinedAt = s.now()
	return s.snapshotLocked(), nil
}

// Leave removes a combatant from the roster.
func (s *Session) Leave(tankID string) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	trimmed := strings.TrimSpace(tankID)
	if trimmed == "" {
		return s.Snapshot()
	}
	s.mu.Lock()
	delete(s.combatants, trimmed)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	return snapshot
}

// Snapshot returns a read-only view of the current session state.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// AdjustCapacity mutates the capacity bounds while guarding the active roster.
func (s *Session) AdjustCapacity(minTanks, maxTanks int) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("session is nil")
	}
	proposed := Capacity{MinTanks: minTanks, MaxTanks: maxTanks}
	if err := validateCapacity(proposed); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	//1.- A shrunken maximum must not evict combatants already in the match.
	if proposed.MaxTanks > 0 && len(s.combatants) > proposed.MaxTanks {
		return Snapshot{}, fmt.Errorf("%w: %d active tanks exceed max %d", ErrInvalidCapacity, len(s.combatants), proposed.MaxTanks)
	}
	s.capacity = proposed
	return s.snapshotLocked(), nil
}

// StartRound advances the session to the given round, records its wind and
// clears the targeting memory so locks never survive a round boundary.
func (s *Session) StartRound(round int, wind float64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.round = round
	s.wind = wind
	s.mu.Unlock()
	s.aim.Reset()
}

// Round returns the current round number.
func (s *Session) Round() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// Wind returns the current round's horizontal wind.
func (s *Session) Wind() float64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wind
}

// Balance reports a combatant's credit balance.
func (s *Session) Balance(tankID string) (int, bool) {
	if s == nil {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	combatant, ok := s.combatants[tankID]
	if !ok {
		return 0, false
	}
	return combatant.balance, true
}

// Credit awards credits, typically for surviving or winning a round.
func (s *Session) Credit(tankID string, amount int) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if amount < 0 {
		return fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	combatant, ok := s.combatants[tankID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTank, tankID)
	}
	combatant.balance += amount
	return nil
}

// ApplyPurchases debits the balance and stocks the inventory for a planned
// shopping list. The whole plan is validated before any item is applied.
func (s *Session) ApplyPurchases(tankID string, plan []ai.Purchase) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	combatant, ok := s.combatants[tankID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTank, tankID)
	}
	total := 0
	for _, purchase := range plan {
		total += purchase.Cost
	}
	//1.- All-or-nothing: a plan the balance cannot cover is rejected whole.
	if total > combatant.balance {
		return fmt.Errorf("%w: plan costs %d, balance %d", ErrInsufficientFunds, total, combatant.balance)
	}
	combatant.balance -= total
	for _, purchase := range plan {
		combatant.inventory[purchase.WeaponID]++
	}
	return nil
}

// Inventory returns a live read-only view of a combatant's weapon stock.
func (s *Session) Inventory(tankID string) ai.Inventory {
	return inventoryView{session: s, tankID: tankID}
}

// ConsumeWeapon spends one unit of the weapon if stocked. The free default
// weapon is always available and never consumed.
func (s *Session) ConsumeWeapon(tankID, weaponID string) bool {
	if s == nil {
		return false
	}
	if weaponID == weapons.DefaultWeaponID {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	combatant, ok := s.combatants[tankID]
	if !ok || combatant.inventory[weaponID] <= 0 {
		return false
	}
	combatant.inventory[weaponID]--
	return true
}

// inventoryView adapts the session's stock map to the decision engine.
type inventoryView struct {
	session *Session
	tankID  string
}

func (v inventoryView) Count(weaponID string) int {
	if v.session == nil {
		return 0
	}
	v.session.mu.RLock()
	defer v.session.mu.RUnlock()
	combatant, ok := v.session.combatants[v.tankID]
	if !ok {
		return 0
	}
	return combatant.inventory[weaponID]
}

func (s *Session) applyEnvironment() error {
	lookup := s.envLookup
	if lookup == nil {
		return nil
	}
	if !s.idConfigured {
		if id := strings.TrimSpace(lookup(envMatchID)); id != "" {
			s.id = id
			s.idConfigured = true
		}
	}
	if s.capConfigured {
		return nil
	}
	var configured bool
	if raw := strings.TrimSpace(lookup(envMinTanks)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidCapacity, envMinTanks, raw)
		}
		s.capacity.MinTanks = value
		configured = true
	}
	if raw := strings.TrimSpace(lookup(envMaxTanks)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidCapacity, envMaxTanks, raw)
		}
		s.capacity.MaxTanks = value
		configured = true
	}
	if configured {
		s.capConfigured = true
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{MatchID: s.id, Capacity: s.capacity, Round: s.round, Wind: s.wind}
	if len(s.combatants) == 0 {
		return snapshot
	}
	snapshot.Combatants = make([]CombatantSnapshot, 0, len(s.combatants))
	for id, combatant := range s.combatants {
		view := CombatantSnapshot{ID: id, Balance: combatant.balance}
		if len(combatant.inventory) > 0 {
			view.Inventory = make(map[string]int, len(combatant.inventory))
			for weapon, count := range combatant.inventory {
				view.Inventory[weapon] = count
			}
		}
		snapshot.Combatants = append(snapshot.Combatants, view)
	}
	//1.- Sort the roster so payloads stay deterministic for consumers and tests.
	sort.Slice(snapshot.Combatants, func(i, j int) bool {
		return snapshot.Combatants[i].ID < snapshot.Combatants[j].ID
	})
	return snapshot
}

func (s *Session) defaultIdentifier() string {
	if s.now == nil {
		return "match"
	}
	return s.now().UTC().Format("match-20060102T150405")
}

func validateCapacity(cap Capacity) error {
	if cap.MinTanks < 0 {
		return fmt.Errorf("%w: minimum tanks must be non-negative", ErrInvalidCapacity)
	}
	if cap.MaxTanks < 0 {
		return fmt.Errorf("%w: maximum tanks must be non-negative", ErrInvalidCapacity)
	}
	if cap.MaxTanks > 0 && cap.MaxTanks < cap.MinTanks {
		return fmt.Errorf("%w: max %d is less than min %d", ErrInvalidCapacity, cap.MaxTanks, cap.MinTanks)
	}
	return nil
}
